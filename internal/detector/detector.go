package detector

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/repository"
)

// Detector appends a StatusEvent only when a reading differs from the latest
// recorded value for its label.
type Detector struct {
	Repo repository.StatusEventRepository
	Now  func() time.Time
}

func (d *Detector) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// DetectAndRecord returns the new event, or nil when the reading repeats the
// current state. Read and insert share one transaction.
func (d *Detector) DetectAndRecord(ctx context.Context, label string, raw bool) (*models.StatusEvent, error) {
	if d == nil || d.Repo == nil {
		return nil, errors.New("detector is not configured")
	}
	var created *models.StatusEvent
	err := d.Repo.InTx(ctx, func(tx *gorm.DB) error {
		latest, err := d.Repo.LatestStatusEventTx(ctx, tx, label)
		if err != nil {
			return err
		}
		if latest != nil && latest.Value == raw {
			return nil
		}
		// Millisecond steps survive mysql datetime(3) columns.
		at := d.now().Truncate(time.Millisecond)
		if latest != nil && !at.After(latest.CreatedAt) {
			at = latest.CreatedAt.Truncate(time.Millisecond).Add(time.Millisecond)
		}
		item := &models.StatusEvent{Label: label, Value: raw, CreatedAt: at}
		if err := d.Repo.InsertStatusEventTx(ctx, tx, item); err != nil {
			return err
		}
		created = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
