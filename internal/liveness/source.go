package liveness

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/config"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/repository"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/retry"
)

// SampleResult is one raw power reading. Skipped means the state is unknown
// for this tick and nothing must be recorded.
type SampleResult struct {
	Powered    bool
	Skipped    bool
	Reason     string
	ObservedAt time.Time
	Attempts   int
}

// Source produces raw readings. Implementations never write to the event store.
type Source interface {
	Sample(ctx context.Context, now time.Time) (SampleResult, error)
}

// New builds the source selected by monitor.mode.
func New(cfg config.Config, heartbeats repository.HeartbeatRepository, logger *zap.Logger) (Source, error) {
	switch cfg.Monitor.Mode {
	case config.ModeHeartbeat:
		if heartbeats == nil {
			return nil, fmt.Errorf("heartbeat mode requires a heartbeat store")
		}
		return &HeartbeatSource{
			Store:        heartbeats,
			Label:        cfg.Heartbeat.Label,
			PollInterval: cfg.Monitor.PollInterval,
			Multiplier:   cfg.Monitor.StalenessMultiplier,
			Retry:        retry.Policy{Attempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: time.Second},
			Logger:       logger,
		}, nil
	case config.ModeDevice:
		return &DeviceSource{
			Client:  NewHTTPPlugClient(cfg.Device),
			Timeout: cfg.Device.Timeout,
			Retry: retry.Policy{
				Attempts:  cfg.Device.Attempts,
				BaseDelay: cfg.Device.BackoffBase,
				MaxDelay:  cfg.Device.BackoffCap,
			},
			Logger: logger,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported monitor mode %q", cfg.Monitor.Mode)
	}
}
