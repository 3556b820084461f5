package outbox

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"shiftcheck/internal/audit"
	"shiftcheck/internal/shared/apperror"
	"shiftcheck/internal/shared/clock"

	"go.uber.org/zap"
)

var errNotFailed = apperror.New(
	apperror.CodeInvalidState,
	"Only failed submissions can be retried",
	http.StatusConflict,
)

// ChecklistStore is a ChecklistMarker that can join a transaction, letting
// Retry revert the checklist and reset the submission in one commit.
type ChecklistStore interface {
	ChecklistMarker
	WithTx(tx *sql.Tx) ChecklistStore
}

//go:generate mockgen -source=outbox_service.go -destination=mock/outbox_service_mock.go -package=mock
type Service interface {
	List(ctx context.Context, status string, limit int) ([]Submission, error)
	Get(ctx context.Context, id string) (*Submission, error)
	Retry(ctx context.Context, id, managerID string) (*Submission, error)
}

type service struct {
	db         *sql.DB
	repo       Repository
	checklists ChecklistStore
	audits     audit.Service
	clk        clock.Clock
	logger     *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	checklists ChecklistStore,
	audits audit.Service,
	clk clock.Clock,
	logger *zap.Logger,
) Service {
	l := zap.L()
	if logger != nil {
		l = logger
	}
	return &service{
		db:         db,
		repo:       repo,
		checklists: checklists,
		audits:     audits,
		clk:        clk,
		logger:     l.Named("outbox"),
	}
}

func (s *service) List(ctx context.Context, status string, limit int) ([]Submission, error) {
	switch status {
	case "", StatusPending, StatusSheetsDone, StatusComplete, StatusFailed:
	default:
		return nil, apperror.InvalidField("status")
	}
	return s.repo.ListByStatus(ctx, status, limit)
}

func (s *service) Get(ctx context.Context, id string) (*Submission, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Retry re-arms a failed submission and puts its checklist back to approved
// in one commit, so the drainer sees a consistent pair on its next tick.
func (s *service) Retry(ctx context.Context, id, managerID string) (*Submission, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != StatusFailed {
		return nil, errNotFailed
	}

	now := s.clk.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	if err := qtx.ResetForRetry(ctx, id, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFailed
		}
		return nil, err
	}
	if err := s.checklists.WithTx(tx).RevertSyncFailed(ctx, sub.ChecklistID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.audits.Record(ctx, audit.ActionSyncRetried, "submission", id, managerID, map[string]any{
		"checklist_id":     sub.ChecklistID,
		"previous_retries": sub.RetryCount,
	})
	s.logger.Info("submission re-armed",
		zap.String("submission_id", id),
		zap.String("checklist_id", sub.ChecklistID),
	)

	return s.Get(ctx, id)
}
