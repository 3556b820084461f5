package staff

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"shiftcheck/internal/audit"
	"shiftcheck/internal/shared/apperror"
	"shiftcheck/internal/shared/clock"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:generate mockgen -source=staff_service.go -destination=mock/staff_service_mock.go -package=mock
type Service interface {
	Create(ctx context.Context, actorID string, req CreateStaffRequest) (StaffResponse, error)
	Update(ctx context.Context, actorID, id string, req UpdateStaffRequest) (StaffResponse, error)
	Deactivate(ctx context.Context, actorID, id string) error
	List(ctx context.Context, includeInactive bool) ([]StaffResponse, error)
}

type service struct {
	repo   Repository
	audits audit.Service
	clk    clock.Clock
	logger *zap.Logger
}

func NewService(repo Repository, audits audit.Service, clk clock.Clock, logger *zap.Logger) Service {
	l := zap.L()
	if logger != nil {
		l = logger
	}
	return &service{
		repo:   repo,
		audits: audits,
		clk:    clk,
		logger: l.Named("staff.service"),
	}
}

var errNameTaken = apperror.New(apperror.CodeConflict, "A staff member with this name already exists", http.StatusConflict)

func (s *service) Create(ctx context.Context, actorID string, req CreateStaffRequest) (StaffResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return StaffResponse{}, apperror.RequiredField("Name")
	}

	role := Role(req.Role)
	if !role.Valid() {
		return StaffResponse{}, apperror.InvalidField("Role")
	}

	if _, err := s.repo.FindByNameFold(ctx, name); err == nil {
		return StaffResponse{}, errNameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return StaffResponse{}, err
	}

	row := &Staff{
		ID:        uuid.NewString(),
		Name:      name,
		Role:      role,
		Active:    true,
		CreatedAt: s.clk.Now(),
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("create staff failed", zap.String("name", name), zap.Error(err))
		return StaffResponse{}, err
	}

	s.audits.Record(ctx, audit.ActionStaffCreated, "staff", row.ID, actorID, map[string]any{
		"name": row.Name,
		"role": string(row.Role),
	})
	s.logger.Info("staff created", zap.String("staff_id", row.ID), zap.String("role", string(row.Role)))
	return mapToResponse(*row), nil
}

func (s *service) Update(ctx context.Context, actorID, id string, req UpdateStaffRequest) (StaffResponse, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StaffResponse{}, apperror.ErrNotFound
		}
		return StaffResponse{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return StaffResponse{}, apperror.RequiredField("Name")
	}

	if other, err := s.repo.FindByNameFold(ctx, name); err == nil && other.ID != row.ID {
		return StaffResponse{}, errNameTaken
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return StaffResponse{}, err
	}

	prev := row.Name
	row.Name = name
	if err := s.repo.Update(ctx, row); err != nil {
		return StaffResponse{}, err
	}

	s.audits.Record(ctx, audit.ActionStaffUpdated, "staff", row.ID, actorID, map[string]any{
		"previous_name": prev,
		"name":          row.Name,
	})
	return mapToResponse(*row), nil
}

// Deactivate soft-deletes: the record stays for historical references in
// checklists and the audit log.
func (s *service) Deactivate(ctx context.Context, actorID, id string) error {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.ErrNotFound
		}
		return err
	}
	if !row.Active {
		return nil
	}

	now := s.clk.Now()
	row.Active = false
	row.DeactivatedAt = &now
	if err := s.repo.Update(ctx, row); err != nil {
		return err
	}

	s.audits.Record(ctx, audit.ActionStaffDeactivated, "staff", row.ID, actorID, map[string]any{
		"name": row.Name,
	})
	return nil
}

func (s *service) List(ctx context.Context, includeInactive bool) ([]StaffResponse, error) {
	rows, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	res := make([]StaffResponse, len(rows))
	for i, r := range rows {
		res[i] = mapToResponse(r)
	}
	return res, nil
}
