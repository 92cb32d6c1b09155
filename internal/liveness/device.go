package liveness

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/retry"
)

// PlugClient reads the relay state of a smart plug.
type PlugClient interface {
	DeviceOn(ctx context.Context) (bool, error)
}

// DeviceSource queries the plug directly. An unreachable plug reads as off.
type DeviceSource struct {
	Client  PlugClient
	Timeout time.Duration
	Retry   retry.Policy
	Logger  *zap.Logger
}

func (s *DeviceSource) Sample(ctx context.Context, now time.Time) (SampleResult, error) {
	if s == nil || s.Client == nil {
		return SampleResult{}, errors.New("device source is not configured")
	}

	var on bool
	attempts, err := retry.Do(ctx, s.Retry, func(ctx context.Context) error {
		callCtx := ctx
		if s.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.Timeout)
			defer cancel()
		}
		var err error
		on, err = s.Client.DeviceOn(callCtx)
		return err
	})
	if err != nil {
		// Shutdown is not evidence of a power cut.
		if ctx.Err() != nil {
			return SampleResult{Skipped: true, Reason: "sampling canceled", Attempts: attempts}, nil
		}
		if s.Logger != nil {
			s.Logger.Warn("device unreachable, reading as off",
				zap.Int("attempts", attempts),
				zap.Error(err),
			)
		}
		return SampleResult{Powered: false, ObservedAt: now, Reason: "device unreachable: " + err.Error(), Attempts: attempts}, nil
	}
	return SampleResult{Powered: on, ObservedAt: now, Reason: "device reported", Attempts: attempts}, nil
}
