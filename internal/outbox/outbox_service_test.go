package outbox_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"shiftcheck/internal/audit"
	"shiftcheck/internal/outbox"
	"shiftcheck/internal/shared/apperror"
	"shiftcheck/internal/shared/clock"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

// stubRepo is a stateful variant of the repository fake: GetByID serves a
// single row and ResetForRetry mimics the real re-arm semantics.
type stubRepo struct {
	fakeOutboxRepository
	row        *outbox.Submission
	resetCalls int
}

func (s *stubRepo) WithTx(tx *sql.Tx) outbox.Repository { return s }

func (s *stubRepo) GetByID(ctx context.Context, id string) (*outbox.Submission, error) {
	if s.row == nil || s.row.ID != id {
		return nil, sql.ErrNoRows
	}
	cp := *s.row
	return &cp, nil
}

func (s *stubRepo) ResetForRetry(ctx context.Context, id string, now time.Time) error {
	s.resetCalls++
	if s.row == nil || s.row.ID != id || s.row.Status != outbox.StatusFailed {
		return sql.ErrNoRows
	}
	if s.row.SheetsRowID != "" {
		s.row.Status = outbox.StatusSheetsDone
	} else {
		s.row.Status = outbox.StatusPending
	}
	if s.row.PDFStatus == outbox.PDFFailed {
		s.row.PDFStatus = outbox.PDFPending
	}
	s.row.RetryCount = 0
	s.row.NextAttemptAt = &now
	return nil
}

type fakeAudit struct {
	actions []string
}

func (f *fakeAudit) Record(ctx context.Context, action, entityType, entityID, performedBy string, details map[string]any) {
	f.actions = append(f.actions, action)
}

func (f *fakeAudit) List(ctx context.Context, filter audit.Filter) ([]audit.Entry, int64, error) {
	return nil, 0, nil
}

type outboxServiceDeps struct {
	db      *sql.DB
	sqlMock sqlmock.Sqlmock
	repo    *stubRepo
	marker  *fakeMarker
	audits  *fakeAudit
	service outbox.Service
}

func setupOutboxServiceTest(t *testing.T, row *outbox.Submission) *outboxServiceDeps {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	assert.NoError(t, err)

	deps := &outboxServiceDeps{
		db:      db,
		sqlMock: sqlMock,
		repo:    &stubRepo{row: row},
		marker:  &fakeMarker{},
		audits:  &fakeAudit{},
	}
	clk := clock.NewFake(time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC))
	deps.service = outbox.NewService(db, deps.repo, deps.marker, deps.audits, clk, nil)
	return deps
}

func failedSubmission() *outbox.Submission {
	sub := pendingSubmission()
	sub.Status = outbox.StatusFailed
	sub.SheetsRowID = "row-42"
	sub.RetryCount = 5
	sub.ErrorLog = nil
	return sub
}

func TestOutboxService_Retry(t *testing.T) {
	ctx := context.Background()

	t.Run("success re-arms submission and reverts checklist", func(t *testing.T) {
		deps := setupOutboxServiceTest(t, failedSubmission())
		defer deps.db.Close()

		deps.sqlMock.ExpectBegin()
		deps.sqlMock.ExpectCommit()

		sub, err := deps.service.Retry(ctx, "sub-1", "m1")

		assert.NoError(t, err)
		assert.Equal(t, outbox.StatusSheetsDone, sub.Status)
		assert.Equal(t, 0, sub.RetryCount)
		assert.Equal(t, 1, deps.repo.resetCalls)
		assert.Equal(t, []string{"chk-1"}, deps.marker.reverted)
		assert.Contains(t, deps.audits.actions, audit.ActionSyncRetried)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative non-failed submission", func(t *testing.T) {
		active := failedSubmission()
		active.Status = outbox.StatusPending
		deps := setupOutboxServiceTest(t, active)
		defer deps.db.Close()

		_, err := deps.service.Retry(ctx, "sub-1", "m1")

		assert.Error(t, err)
		httpErr := apperror.ToHTTP(err)
		assert.Equal(t, apperror.CodeInvalidState, httpErr.Code)
		assert.Equal(t, 0, deps.repo.resetCalls)
	})

	t.Run("negative unknown submission", func(t *testing.T) {
		deps := setupOutboxServiceTest(t, nil)
		defer deps.db.Close()

		_, err := deps.service.Retry(ctx, "ghost", "m1")

		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

func TestOutboxService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("negative unknown status filter", func(t *testing.T) {
		deps := setupOutboxServiceTest(t, nil)
		defer deps.db.Close()

		_, err := deps.service.List(ctx, "exploded", 10)

		assert.Error(t, err)
	})

	t.Run("success empty filter passes through", func(t *testing.T) {
		deps := setupOutboxServiceTest(t, nil)
		defer deps.db.Close()

		subs, err := deps.service.List(ctx, "", 10)

		assert.NoError(t, err)
		assert.Empty(t, subs)
	})
}
