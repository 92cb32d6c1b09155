package db

import (
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.StatusEvent{},
		&models.Heartbeat{},
		&models.Subscriber{},
		&models.NotificationCursor{},
	)
}
