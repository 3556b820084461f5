package device

import "time"

const singletonID = "device"

// Config is the per-device identity: a stable id used for session ownership
// checks and a salt that binds PIN digests to this device.
type Config struct {
	ID        string    `gorm:"column:id;primaryKey" json:"-"`
	DeviceID  string    `gorm:"column:device_id;not null" json:"device_id"`
	Salt      string    `gorm:"column:salt;not null" json:"-"`
	Name      string    `gorm:"column:name" json:"name"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Config) TableName() string {
	return "device_config"
}
