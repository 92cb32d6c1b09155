package models

import "time"

// Heartbeat holds the latest ping per label.
type Heartbeat struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Label     string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Timestamp time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Heartbeat) TableName() string {
	return "heartbeats"
}
