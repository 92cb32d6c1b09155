package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationCursor mirrors the in-process cursor of the polling driver.
// Report keeps the last fanout report as JSON.
type NotificationCursor struct {
	Label           string `gorm:"primaryKey;type:varchar(64)"`
	EventID         uint64 `gorm:"not null"`
	LastAttemptAt   *time.Time
	LastBroadcastAt *time.Time
	LastError       *string `gorm:"type:text"`
	Report          datatypes.JSON
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (NotificationCursor) TableName() string {
	return "notification_cursors"
}
