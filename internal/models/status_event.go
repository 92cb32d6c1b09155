package models

import "time"

// StatusEvent is one recorded power state transition. Rows are append-only.
type StatusEvent struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement;index:idx_status_events_label_id,priority:2"`
	Label     string    `gorm:"type:varchar(64);not null;index:idx_status_events_label_id,priority:1"`
	Value     bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (StatusEvent) TableName() string {
	return "status_events"
}
