package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/repository"
)

type Store struct {
	db *gorm.DB
}

var _ repository.Repository = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- status events -----------------------------------------------------------

// LatestStatusEventTx reads the newest event for label inside tx. On postgres a
// transaction-scoped advisory lock keyed by label serializes concurrent writers.
func (s *Store) LatestStatusEventTx(ctx context.Context, tx *gorm.DB, label string) (*models.StatusEvent, error) {
	if tx == nil {
		return nil, nil
	}
	tx = tx.WithContext(ctx)
	if tx.Dialector != nil && tx.Dialector.Name() == "postgres" {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "status_events:"+label).Error; err != nil {
			return nil, err
		}
	}
	var item models.StatusEvent
	err := tx.Where("label = ?", label).Order("id DESC").Limit(1).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) InsertStatusEventTx(ctx context.Context, tx *gorm.DB, item *models.StatusEvent) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) LatestStatusEvent(ctx context.Context, label string) (*models.StatusEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.StatusEvent
	err := s.db.WithContext(ctx).Where("label = ?", label).Order("id DESC").Limit(1).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) PreviousStatusEvent(ctx context.Context, label string, beforeID uint64) (*models.StatusEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.StatusEvent
	err := s.db.WithContext(ctx).
		Where("label = ? AND id < ?", label, beforeID).
		Order("id DESC").
		Limit(1).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListStatusEvents(ctx context.Context, params repository.ListStatusEventsParams) ([]models.StatusEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.StatusEvent{})
	if label := strings.TrimSpace(params.Label); label != "" {
		query = query.Where("label = ?", label)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", params.Since.UTC())
	}
	var items []models.StatusEvent
	if err := query.Order("id DESC").Limit(normalizeLimit(params.Limit, 50, 500)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- heartbeats --------------------------------------------------------------

func (s *Store) GetHeartbeat(ctx context.Context, label string) (*models.Heartbeat, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Heartbeat
	err := s.db.WithContext(ctx).Where("label = ?", label).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertHeartbeat(ctx context.Context, label string, ts time.Time) (*models.Heartbeat, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	now := time.Now().UTC()
	item := &models.Heartbeat{
		Label:     label,
		Timestamp: ts.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "label"}},
		DoUpdates: clause.AssignmentColumns([]string{"timestamp", "updated_at"}),
	}).Create(item).Error
	if err != nil {
		return nil, err
	}
	return s.GetHeartbeat(ctx, label)
}

// --- subscribers -------------------------------------------------------------

func (s *Store) ListNotifiableSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Subscriber
	err := s.db.WithContext(ctx).
		Where("notifs_enabled = ?", true).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetSubscriber(ctx context.Context, id int64) (*models.Subscriber, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Subscriber
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpsertSubscriber creates the subscriber with its preferences, or refreshes the
// profile fields of an existing one. Existing preferences are kept.
func (s *Store) UpsertSubscriber(ctx context.Context, item *models.Subscriber) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username",
			"first_name",
			"language_code",
			"is_bot",
			"is_admin",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) UpdateSubscriberPreferences(ctx context.Context, id int64, prefs repository.SubscriberPreferences) (*models.Subscriber, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var out *models.Subscriber
	err := s.InTx(ctx, func(tx *gorm.DB) error {
		var item models.Subscriber
		err := tx.Where("id = ?", id).Take(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}
		updates := map[string]any{}
		if prefs.NotifsEnabled != nil {
			updates["notifs_enabled"] = *prefs.NotifsEnabled
		}
		if prefs.NightSoundEnabled != nil {
			updates["night_sound_enabled"] = *prefs.NightSoundEnabled
		}
		if prefs.LanguageCode != nil {
			updates["language_code"] = strings.ToLower(strings.TrimSpace(*prefs.LanguageCode))
		}
		if len(updates) > 0 {
			if err := tx.Model(&item).Updates(updates).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("id = ?", id).Take(&item).Error; err != nil {
			return err
		}
		out = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --- notification cursors ----------------------------------------------------

func (s *Store) GetNotificationCursor(ctx context.Context, label string) (*models.NotificationCursor, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.NotificationCursor
	err := s.db.WithContext(ctx).Where("label = ?", label).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SaveNotificationCursor upserts the cursor row. Broadcast columns are only
// overwritten when LastBroadcastAt is set, so quiet ticks keep the last report.
func (s *Store) SaveNotificationCursor(ctx context.Context, item *models.NotificationCursor) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	cols := []string{"event_id", "last_attempt_at", "last_error", "updated_at"}
	if item.LastBroadcastAt != nil {
		cols = append(cols, "last_broadcast_at", "report")
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "label"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(item).Error
}

func normalizeLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
