package ingress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/config"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
)

const connectTimeout = 10 * time.Second

var errBadPayload = errors.New("bad heartbeat payload")

// Recorder stores a ping; implemented by service.HeartbeatService.
type Recorder interface {
	Record(ctx context.Context, label string, unix int64) (*models.Heartbeat, error)
}

// MQTTSubscriber feeds heartbeats published as {"timestamp":<unix>,"label":"..."}
// into the same store as the HTTP ingress.
type MQTTSubscriber struct {
	cfg      config.MQTTConfig
	recorder Recorder
	logger   *zap.Logger

	mu      sync.Mutex
	client  mqtt.Client
	baseCtx context.Context
}

func NewMQTTSubscriber(cfg config.MQTTConfig, recorder Recorder, logger *zap.Logger) *MQTTSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTSubscriber{cfg: cfg, recorder: recorder, logger: logger}
}

// Start connects and subscribes. The subscription is restored on reconnect.
func (s *MQTTSubscriber) Start(ctx context.Context) error {
	if s == nil || s.recorder == nil {
		return errors.New("mqtt subscriber is not configured")
	}
	clientID := strings.TrimSpace(s.cfg.ClientID)
	if clientID == "" {
		clientID = "power-monitor-" + uuid.NewString()
	}
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOrderMatters(false).
		SetOnConnectHandler(s.subscribe).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.logger.Warn("mqtt connection lost", zap.Error(err))
		})
	if s.cfg.Username != "" {
		opts = opts.SetUsername(s.cfg.Username).SetPassword(s.cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect to %s: timeout", s.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", s.cfg.Broker, err)
	}
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	s.logger.Info("mqtt heartbeat ingress connected",
		zap.String("broker", s.cfg.Broker),
		zap.String("topic", s.cfg.Topic),
		zap.String("client_id", clientID),
	)
	return nil
}

func (s *MQTTSubscriber) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
}

func (s *MQTTSubscriber) subscribe(c mqtt.Client) {
	qos := byte(0)
	if s.cfg.QoS > 0 && s.cfg.QoS <= 2 {
		qos = byte(s.cfg.QoS)
	}
	token := c.Subscribe(s.cfg.Topic, qos, s.onMessage)
	if token.WaitTimeout(connectTimeout) && token.Error() != nil {
		s.logger.Error("mqtt subscribe failed", zap.String("topic", s.cfg.Topic), zap.Error(token.Error()))
	}
}

func (s *MQTTSubscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.Handle(ctx, msg.Payload()); err != nil {
		s.logger.Warn("mqtt heartbeat rejected", zap.String("topic", msg.Topic()), zap.Error(err))
	}
}

// Handle parses one payload and records it.
func (s *MQTTSubscriber) Handle(ctx context.Context, payload []byte) error {
	label, ts, err := parsePayload(payload)
	if err != nil {
		return err
	}
	_, err = s.recorder.Record(ctx, label, ts)
	return err
}

func parsePayload(payload []byte) (string, int64, error) {
	if !gjson.ValidBytes(payload) {
		return "", 0, fmt.Errorf("%w: not json", errBadPayload)
	}
	raw := gjson.GetBytes(payload, "timestamp")
	var ts int64
	switch raw.Type {
	case gjson.Number:
		if raw.Num != math.Trunc(raw.Num) {
			return "", 0, fmt.Errorf("%w: timestamp is not an integer", errBadPayload)
		}
		ts = raw.Int()
	case gjson.String:
		v, err := strconv.ParseInt(strings.TrimSpace(raw.Str), 10, 64)
		if err != nil {
			return "", 0, fmt.Errorf("%w: timestamp is not an integer", errBadPayload)
		}
		ts = v
	default:
		return "", 0, fmt.Errorf("%w: timestamp missing", errBadPayload)
	}
	if ts <= 0 {
		return "", 0, fmt.Errorf("%w: timestamp must be positive", errBadPayload)
	}
	return gjson.GetBytes(payload, "label").String(), ts, nil
}
