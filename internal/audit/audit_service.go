package audit

import (
	"context"

	"shiftcheck/internal/shared/clock"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:generate mockgen -source=audit_service.go -destination=mock/audit_service_mock.go -package=mock
type Service interface {
	Record(ctx context.Context, action, entityType, entityID, performedBy string, details map[string]any)
	List(ctx context.Context, f Filter) ([]Entry, int64, error)
}

type service struct {
	repo     Repository
	deviceID string
	clk      clock.Clock
	logger   *zap.Logger
}

func NewService(repo Repository, deviceID string, clk clock.Clock, logger *zap.Logger) Service {
	l := zap.L()
	if logger != nil {
		l = logger
	}
	return &service{
		repo:     repo,
		deviceID: deviceID,
		clk:      clk,
		logger:   l.Named("audit"),
	}
}

// Record appends an entry. A storage failure is logged but never propagated:
// the audited operation has already committed and must not be rolled back by
// bookkeeping.
func (s *service) Record(ctx context.Context, action, entityType, entityID, performedBy string, details map[string]any) {
	entry := &Entry{
		ID:          uuid.NewString(),
		Action:      action,
		EntityID:    entityID,
		EntityType:  entityType,
		PerformedBy: performedBy,
		Details:     details,
		Timestamp:   s.clk.Now(),
		DeviceID:    s.deviceID,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("audit append failed",
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("audit event",
		zap.String("action", action),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID),
		zap.String("performed_by", performedBy),
		zap.Any("details", details),
	)
}

func (s *service) List(ctx context.Context, f Filter) ([]Entry, int64, error) {
	return s.repo.List(ctx, f)
}
