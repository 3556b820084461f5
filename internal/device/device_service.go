package device

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Ensure loads the device config, creating it on first boot. The salt is
// generated once and never rotated: rotating it would invalidate every
// manager PIN digest on this device.
func (s *Service) Ensure(ctx context.Context, name string) (*Config, error) {
	var cfg Config
	err := s.db.WithContext(ctx).First(&cfg, "id = ?", singletonID).Error
	if err == nil {
		return &cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}

	cfg = Config{
		ID:        singletonID,
		DeviceID:  uuid.NewString(),
		Salt:      hex.EncodeToString(buf),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}
