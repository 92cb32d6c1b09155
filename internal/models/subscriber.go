package models

import "time"

// Subscriber is a notification recipient; ID is the Telegram chat id.
type Subscriber struct {
	ID           int64  `gorm:"primaryKey;autoIncrement:false"`
	Username     string `gorm:"type:varchar(64)"`
	FirstName    string `gorm:"type:varchar(128)"`
	LanguageCode string `gorm:"type:varchar(8)"`
	IsBot        bool
	IsAdmin      bool

	NotifsEnabled     bool `gorm:"not null;index"`
	NightSoundEnabled bool `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Subscriber) TableName() string {
	return "subscribers"
}
