package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
)

// ErrNotFound is returned by mutating operations whose target row does not exist.
// Lookups return (nil, nil) instead.
var ErrNotFound = errors.New("record not found")

type StatusEventRepository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	LatestStatusEventTx(ctx context.Context, tx *gorm.DB, label string) (*models.StatusEvent, error)
	InsertStatusEventTx(ctx context.Context, tx *gorm.DB, item *models.StatusEvent) error
	LatestStatusEvent(ctx context.Context, label string) (*models.StatusEvent, error)
	PreviousStatusEvent(ctx context.Context, label string, beforeID uint64) (*models.StatusEvent, error)
	ListStatusEvents(ctx context.Context, params ListStatusEventsParams) ([]models.StatusEvent, error)
}

type HeartbeatRepository interface {
	GetHeartbeat(ctx context.Context, label string) (*models.Heartbeat, error)
	UpsertHeartbeat(ctx context.Context, label string, ts time.Time) (*models.Heartbeat, error)
}

type SubscriberRepository interface {
	ListNotifiableSubscribers(ctx context.Context) ([]models.Subscriber, error)
	GetSubscriber(ctx context.Context, id int64) (*models.Subscriber, error)
	UpsertSubscriber(ctx context.Context, item *models.Subscriber) error
	UpdateSubscriberPreferences(ctx context.Context, id int64, prefs SubscriberPreferences) (*models.Subscriber, error)
}

type CursorRepository interface {
	GetNotificationCursor(ctx context.Context, label string) (*models.NotificationCursor, error)
	SaveNotificationCursor(ctx context.Context, item *models.NotificationCursor) error
}

type Repository interface {
	StatusEventRepository
	HeartbeatRepository
	SubscriberRepository
	CursorRepository
}

type ListStatusEventsParams struct {
	Label string
	Limit int
	Since *time.Time
}

// SubscriberPreferences is a partial update; nil fields are left untouched.
type SubscriberPreferences struct {
	NotifsEnabled     *bool
	NightSoundEnabled *bool
	LanguageCode      *string
}

func (p SubscriberPreferences) Empty() bool {
	return p.NotifsEnabled == nil && p.NightSoundEnabled == nil && p.LanguageCode == nil
}
