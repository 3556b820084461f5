package staff

import (
	"context"

	"gorm.io/gorm"
)

//go:generate mockgen -source=staff_repo.go -destination=mock/staff_repo_mock.go -package=mock
type Repository interface {
	Create(ctx context.Context, s *Staff) error
	Update(ctx context.Context, s *Staff) error
	FindByID(ctx context.Context, id string) (*Staff, error)
	FindByNameFold(ctx context.Context, name string) (*Staff, error)
	List(ctx context.Context, includeInactive bool) ([]Staff, error)
	UpdateCredentials(ctx context.Context, id string, creds ManagerCredentials) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, s *Staff) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *repository) Update(ctx context.Context, s *Staff) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*Staff, error) {
	var row Staff
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByNameFold matches names case-insensitively; uniqueness is enforced at
// this level, not by a db constraint.
func (r *repository) FindByNameFold(ctx context.Context, name string) (*Staff, error) {
	var row Staff
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", name).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) List(ctx context.Context, includeInactive bool) ([]Staff, error) {
	q := r.db.WithContext(ctx).Model(&Staff{})
	if !includeInactive {
		q = q.Where("active = ?", true)
	}

	var rows []Staff
	err := q.Order("name ASC").Find(&rows).Error
	return rows, err
}

// UpdateCredentials persists a PIN/lockout transition without touching the
// rest of the record.
func (r *repository) UpdateCredentials(ctx context.Context, id string, creds ManagerCredentials) error {
	return r.db.WithContext(ctx).
		Model(&Staff{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"pin_hash":        creds.PINHash,
			"failed_attempts": creds.FailedAttempts,
			"locked_until":    creds.LockedUntil,
		}).Error
}
