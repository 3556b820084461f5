package settings

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type UpdateRequest struct {
	VenueName         *string `json:"venue_name"`
	Area              *string `json:"area"`
	MaxRetries        *int    `json:"max_retries" binding:"omitempty,min=1,max=20"`
	IdlePollSeconds   *int    `json:"idle_poll_seconds" binding:"omitempty,min=5,max=600"`
	ActivePollSeconds *int    `json:"active_poll_seconds" binding:"omitempty,min=1,max=60"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Get returns the settings row, creating the defaults on first access.
func (s *Service) Get(ctx context.Context) (*Settings, error) {
	var row Settings
	err := s.db.WithContext(ctx).First(&row, "id = ?", singletonID).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	row = defaults()
	row.UpdatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) (*Settings, error) {
	row, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	if req.VenueName != nil {
		row.VenueName = *req.VenueName
	}
	if req.Area != nil {
		row.Area = *req.Area
	}
	if req.MaxRetries != nil {
		row.MaxRetries = *req.MaxRetries
	}
	if req.IdlePollSeconds != nil {
		row.IdlePollSeconds = *req.IdlePollSeconds
	}
	if req.ActivePollSeconds != nil {
		row.ActivePollSeconds = *req.ActivePollSeconds
	}
	row.UpdatedAt = time.Now().UTC()

	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}
