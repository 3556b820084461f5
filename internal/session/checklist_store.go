package session

import (
	"context"
	"database/sql"
	"time"

	"shiftcheck/internal/outbox"
)

// checklistStore adapts Repository to the outbox's view of checklists, so the
// sync machinery can flip statuses without knowing the checklist model.
type checklistStore struct {
	repo Repository
}

func NewChecklistStore(repo Repository) outbox.ChecklistStore {
	return checklistStore{repo: repo}
}

func (s checklistStore) MarkSynced(ctx context.Context, checklistID string, at time.Time) error {
	return s.repo.MarkSynced(ctx, checklistID, at)
}

func (s checklistStore) MarkSyncFailed(ctx context.Context, checklistID string) error {
	return s.repo.MarkSyncFailed(ctx, checklistID)
}

func (s checklistStore) RevertSyncFailed(ctx context.Context, checklistID string, at time.Time) error {
	return s.repo.RevertSyncFailed(ctx, checklistID, at)
}

func (s checklistStore) WithTx(tx *sql.Tx) outbox.ChecklistStore {
	return checklistStore{repo: s.repo.WithTx(tx)}
}
