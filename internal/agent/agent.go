package agent

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Config is read from the environment of the machine on the monitored power line.
type Config struct {
	Host     string        `env:"DROPLET_IP" envDefault:"localhost"`
	Port     int           `env:"DROPLET_PORT" envDefault:"5566"`
	Path     string        `env:"HEARTBEAT_PATH" envDefault:"/heartbeat"`
	Interval int           `env:"SEND_HEARTBEAT_INTERVAL_SECONDS" envDefault:"10"`
	Timeout  time.Duration `env:"HEARTBEAT_TIMEOUT" envDefault:"5s"`
	Token    string        `env:"HEARTBEAT_TOKEN"`
	Label    string        `env:"HEARTBEAT_LABEL" envDefault:"UNKNOWN"`
	Scheme   string        `env:"HEARTBEAT_SCHEME" envDefault:"http"`
	LogLevel string        `env:"LOG_LEVEL" envDefault:"info"`
}

func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.Path = "/" + strings.TrimLeft(strings.TrimSpace(cfg.Path), "/")
	return cfg, nil
}

func (c Config) URL() string {
	return fmt.Sprintf("%s://%s%s", c.Scheme, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), c.Path)
}

func (c Config) Every() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// Agent pings the monitor on a fixed interval. A failed ping is logged and the
// loop carries on; the monitor treats silence as an outage.
type Agent struct {
	cfg    Config
	client *resty.Client
	logger *zap.Logger
	now    func() time.Time
}

func New(cfg Config, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().SetTimeout(cfg.Timeout)
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &Agent{cfg: cfg, client: client, logger: logger, now: time.Now}
}

// SendOnce performs a single ping.
func (a *Agent) SendOnce(ctx context.Context) error {
	ts := a.now().Unix()
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"timestamp": strconv.FormatInt(ts, 10),
			"label":     a.cfg.Label,
		}).
		Get(a.cfg.URL())
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("heartbeat rejected: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	a.logger.Debug("heartbeat sent", zap.Int64("timestamp", ts), zap.String("label", a.cfg.Label))
	return nil
}

// Run pings immediately and then every interval until ctx is done.
func (a *Agent) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Every())
	defer ticker.Stop()
	for {
		if err := a.SendOnce(ctx); err != nil && ctx.Err() == nil {
			a.logger.Warn("heartbeat failed", zap.String("url", a.cfg.URL()), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
