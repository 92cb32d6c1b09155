package liveness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/repository"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/retry"
)

// HeartbeatSource reports power on while the latest ping of Label is no older
// than Multiplier*PollInterval.
type HeartbeatSource struct {
	Store        repository.HeartbeatRepository
	Label        string
	PollInterval time.Duration
	Multiplier   int
	Retry        retry.Policy
	Logger       *zap.Logger
}

func (s *HeartbeatSource) Threshold() time.Duration {
	k := s.Multiplier
	if k <= 0 {
		k = 1
	}
	return time.Duration(k) * s.PollInterval
}

func (s *HeartbeatSource) Sample(ctx context.Context, now time.Time) (SampleResult, error) {
	if s == nil || s.Store == nil {
		return SampleResult{}, errors.New("heartbeat source is not configured")
	}

	var hb *models.Heartbeat
	attempts, err := retry.Do(ctx, s.Retry, func(ctx context.Context) error {
		var err error
		hb, err = s.Store.GetHeartbeat(ctx, s.Label)
		return err
	})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("heartbeat read failed",
				zap.String("label", s.Label),
				zap.Int("attempts", attempts),
				zap.Error(err),
			)
		}
		return SampleResult{Skipped: true, Reason: "heartbeat read failed: " + err.Error(), Attempts: attempts}, nil
	}
	if hb == nil {
		return SampleResult{Skipped: true, Reason: "no heartbeat received yet", Attempts: attempts}, nil
	}

	threshold := s.Threshold()
	age := now.Sub(heartbeatSeenAt(hb, now))
	return SampleResult{
		Powered:    age <= threshold,
		ObservedAt: hb.Timestamp,
		Reason:     fmt.Sprintf("heartbeat age %s, threshold %s", age.Round(time.Second), threshold),
		Attempts:   attempts,
	}, nil
}

// heartbeatSeenAt is the ping timestamp, except that a timestamp ahead of now
// is replaced by the time the ping was stored.
func heartbeatSeenAt(hb *models.Heartbeat, now time.Time) time.Time {
	if !hb.Timestamp.After(now) {
		return hb.Timestamp
	}
	if !hb.UpdatedAt.IsZero() && hb.UpdatedAt.Before(now) {
		return hb.UpdatedAt
	}
	return now
}
