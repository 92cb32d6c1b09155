package service

import (
	"context"
	"strings"
	"time"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/repository"
)

type StatusView struct {
	Label        string                     `json:"label"`
	Event        *models.StatusEvent        `json:"event"`
	SinceSeconds int64                      `json:"since_seconds"`
	Cursor       *models.NotificationCursor `json:"cursor,omitempty"`
}

type StatusService struct {
	Events  repository.StatusEventRepository
	Cursors repository.CursorRepository
	Now     func() time.Time
}

// Latest returns nil when the label has no recorded transitions.
func (s *StatusService) Latest(ctx context.Context, label string) (*StatusView, error) {
	if s == nil || s.Events == nil {
		return nil, nil
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrInvalidInput
	}
	event, err := s.Events.LatestStatusEvent(ctx, label)
	if err != nil || event == nil {
		return nil, err
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	view := &StatusView{
		Label:        label,
		Event:        event,
		SinceSeconds: int64(now.Sub(event.CreatedAt).Seconds()),
	}
	if view.SinceSeconds < 0 {
		view.SinceSeconds = 0
	}
	if s.Cursors != nil {
		cur, err := s.Cursors.GetNotificationCursor(ctx, label)
		if err != nil {
			return nil, err
		}
		view.Cursor = cur
	}
	return view, nil
}

func (s *StatusService) Recent(ctx context.Context, label string, limit int) ([]models.StatusEvent, error) {
	if s == nil || s.Events == nil {
		return nil, nil
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrInvalidInput
	}
	return s.Events.ListStatusEvents(ctx, repository.ListStatusEventsParams{Label: label, Limit: limit})
}
