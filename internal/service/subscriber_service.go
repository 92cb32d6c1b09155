package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/repository"
)

type RegisterInput struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LanguageCode string `json:"language_code"`
	IsBot        bool   `json:"is_bot"`
	IsAdmin      bool   `json:"is_admin"`
}

type SubscriberService struct {
	Repo          repository.SubscriberRepository
	DefaultLocale string
}

func (s *SubscriberService) Notifiable(ctx context.Context) ([]models.Subscriber, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListNotifiableSubscribers(ctx)
}

// Register creates a subscriber with notifications and night sound enabled.
// For a known id only the profile fields are refreshed.
func (s *SubscriberService) Register(ctx context.Context, in RegisterInput) (*models.Subscriber, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("subscriber store unavailable")
	}
	if in.ID == 0 {
		return nil, ErrInvalidInput
	}
	lang := strings.ToLower(strings.TrimSpace(in.LanguageCode))
	if lang == "" {
		lang = s.DefaultLocale
	}
	now := time.Now().UTC()
	item := &models.Subscriber{
		ID:                in.ID,
		Username:          strings.TrimSpace(in.Username),
		FirstName:         strings.TrimSpace(in.FirstName),
		LanguageCode:      lang,
		IsBot:             in.IsBot,
		IsAdmin:           in.IsAdmin,
		NotifsEnabled:     true,
		NightSoundEnabled: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Repo.UpsertSubscriber(ctx, item); err != nil {
		return nil, err
	}
	return s.Repo.GetSubscriber(ctx, in.ID)
}

func (s *SubscriberService) Preferences(ctx context.Context, id int64) (*models.Subscriber, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("subscriber store unavailable")
	}
	item, err := s.Repo.GetSubscriber(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, repository.ErrNotFound
	}
	return item, nil
}

func (s *SubscriberService) UpdatePreferences(ctx context.Context, id int64, prefs repository.SubscriberPreferences) (*models.Subscriber, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("subscriber store unavailable")
	}
	if prefs.Empty() {
		return nil, ErrInvalidInput
	}
	if prefs.LanguageCode != nil && strings.TrimSpace(*prefs.LanguageCode) == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.UpdateSubscriberPreferences(ctx, id, prefs)
}
