package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/repository"
)

// DefaultHeartbeatLabel is used for pings that carry no label.
const DefaultHeartbeatLabel = "UNKNOWN"

var ErrInvalidInput = errors.New("invalid input")

// HeartbeatService records pings from the HTTP and MQTT ingress paths.
type HeartbeatService struct {
	Repo repository.HeartbeatRepository
}

func (s *HeartbeatService) Record(ctx context.Context, label string, unix int64) (*models.Heartbeat, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("heartbeat store unavailable")
	}
	if unix <= 0 {
		return nil, ErrInvalidInput
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = DefaultHeartbeatLabel
	}
	return s.Repo.UpsertHeartbeat(ctx, label, time.Unix(unix, 0).UTC())
}
