package settings

import "time"

const singletonID = "settings"

// Settings is the singleton app configuration row.
type Settings struct {
	ID                string    `gorm:"column:id;primaryKey" json:"-"`
	VenueName         string    `gorm:"column:venue_name" json:"venue_name"`
	Area              string    `gorm:"column:area" json:"area"`
	MaxRetries        int       `gorm:"column:max_retries;not null;default:5" json:"max_retries"`
	IdlePollSeconds   int       `gorm:"column:idle_poll_seconds;not null;default:30" json:"idle_poll_seconds"`
	ActivePollSeconds int       `gorm:"column:active_poll_seconds;not null;default:5" json:"active_poll_seconds"`
	UpdatedAt         time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Settings) TableName() string {
	return "app_settings"
}

func defaults() Settings {
	return Settings{
		ID:                singletonID,
		MaxRetries:        5,
		IdlePollSeconds:   30,
		ActivePollSeconds: 5,
	}
}
