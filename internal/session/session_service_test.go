package session_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"shiftcheck/internal/audit"
	"shiftcheck/internal/outbox"
	"shiftcheck/internal/pinauth"
	"shiftcheck/internal/session"
	"shiftcheck/internal/settings"
	"shiftcheck/internal/shared/apperror"
	"shiftcheck/internal/shared/clock"
	"shiftcheck/internal/staff"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

const ownDeviceID = "device-own"

type fakeChecklistRepository struct {
	rows map[string]*session.Checklist
}

func newFakeChecklistRepository(rows ...*session.Checklist) *fakeChecklistRepository {
	m := make(map[string]*session.Checklist, len(rows))
	for _, r := range rows {
		m[r.ID] = r
	}
	return &fakeChecklistRepository{rows: m}
}

func (f *fakeChecklistRepository) WithTx(tx *sql.Tx) session.Repository { return f }

func (f *fakeChecklistRepository) Create(ctx context.Context, c *session.Checklist) error {
	f.rows[c.ID] = c
	return nil
}

func (f *fakeChecklistRepository) GetByID(ctx context.Context, id string) (*session.Checklist, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (f *fakeChecklistRepository) Update(ctx context.Context, c *session.Checklist) error {
	if _, ok := f.rows[c.ID]; !ok {
		return sql.ErrNoRows
	}
	f.rows[c.ID] = c
	return nil
}

func (f *fakeChecklistRepository) FindActiveByTemplate(ctx context.Context, templateID string) ([]session.Checklist, error) {
	var out []session.Checklist
	for _, r := range f.rows {
		if r.TemplateID == templateID && r.Status.Active() {
			out = append(out, *r)
		}
	}
	// Newest activity first, matching the real query's ordering.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].LastModifiedAt.After(out[i].LastModifiedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeChecklistRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (f *fakeChecklistRepository) MarkSyncFailed(ctx context.Context, id string) error { return nil }

func (f *fakeChecklistRepository) RevertSyncFailed(ctx context.Context, id string, at time.Time) error {
	return nil
}

type fakeSubmissionRepository struct {
	created []outbox.Submission
	exists  bool
}

func (f *fakeSubmissionRepository) WithTx(tx *sql.Tx) outbox.Repository { return f }

func (f *fakeSubmissionRepository) Create(ctx context.Context, s *outbox.Submission) error {
	f.created = append(f.created, *s)
	return nil
}

func (f *fakeSubmissionRepository) GetByID(ctx context.Context, id string) (*outbox.Submission, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeSubmissionRepository) Update(ctx context.Context, s *outbox.Submission) error {
	return nil
}

func (f *fakeSubmissionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]outbox.Submission, error) {
	return nil, nil
}

func (f *fakeSubmissionRepository) ListByStatus(ctx context.Context, status string, limit int) ([]outbox.Submission, error) {
	return nil, nil
}

func (f *fakeSubmissionRepository) CountActive(ctx context.Context) (int, error) { return 0, nil }

func (f *fakeSubmissionRepository) ExistsForChecklist(ctx context.Context, checklistID string) (bool, error) {
	return f.exists, nil
}

func (f *fakeSubmissionRepository) ResetForRetry(ctx context.Context, id string, now time.Time) error {
	return nil
}

type fakeStaffRepository struct {
	rows map[string]*staff.Staff
}

func (f *fakeStaffRepository) Create(ctx context.Context, s *staff.Staff) error { return nil }
func (f *fakeStaffRepository) Update(ctx context.Context, s *staff.Staff) error { return nil }

func (f *fakeStaffRepository) FindByID(ctx context.Context, id string) (*staff.Staff, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (f *fakeStaffRepository) FindByNameFold(ctx context.Context, name string) (*staff.Staff, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStaffRepository) List(ctx context.Context, includeInactive bool) ([]staff.Staff, error) {
	return nil, nil
}

func (f *fakeStaffRepository) UpdateCredentials(ctx context.Context, id string, creds staff.ManagerCredentials) error {
	return nil
}

type fakePINVerifier struct {
	result pinauth.VerifyResult
}

func (f *fakePINVerifier) Verify(ctx context.Context, managerID, pin string) (pinauth.VerifyResult, error) {
	return f.result, nil
}

type fakeSettings struct{}

func (fakeSettings) Get(ctx context.Context) (*settings.Settings, error) {
	return &settings.Settings{
		VenueName:  "Harbor House",
		Area:       "Bar",
		MaxRetries: 5,
	}, nil
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

type sessionServiceDeps struct {
	db      *sql.DB
	sqlMock sqlmock.Sqlmock
	repo    *fakeChecklistRepository
	outbox  *fakeSubmissionRepository
	staff   *fakeStaffRepository
	pins    *fakePINVerifier
	audits  *fakeAudit
	clk     *clock.Fake
	service session.Service
}

func setupSessionServiceTest(t *testing.T, checklists ...*session.Checklist) *sessionServiceDeps {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	assert.NoError(t, err)

	deps := &sessionServiceDeps{
		db:      db,
		sqlMock: sqlMock,
		repo:    newFakeChecklistRepository(checklists...),
		outbox:  &fakeSubmissionRepository{},
		staff: &fakeStaffRepository{rows: map[string]*staff.Staff{
			"s1": {ID: "s1", Name: "Riley", Role: staff.RoleStaff, Active: true},
			"m1": {ID: "m1", Name: "Dana", Role: staff.RoleManager, Active: true},
		}},
		pins:   &fakePINVerifier{result: pinauth.VerifyResult{Success: true}},
		audits: &fakeAudit{},
		clk:    clock.NewFake(time.Date(2026, 8, 1, 22, 0, 0, 0, time.UTC)),
	}
	deps.service = session.NewService(
		db, deps.repo, deps.outbox, deps.staff,
		deps.pins, fakeSettings{}, deps.audits,
		ownDeviceID, deps.clk, nil,
	)
	return deps
}

func expectTx(t *testing.T, mock sqlmock.Sqlmock, commit bool) {
	t.Helper()
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

func inProgressChecklist(id string) *session.Checklist {
	c := &session.Checklist{
		ID:           id,
		TemplateID:   "tpl-1",
		TemplateName: "Closing — Bar",
		DutyType:     "Closing",
		Status:       session.StatusInProgress,
		StartedBy:    staff.Ref{ID: "s1", Name: "Riley", Role: "staff"},
		DeviceID:     ownDeviceID,
		Tasks: map[string]session.TaskCompletion{
			"t1": {TaskID: "t1", Status: session.TaskNotDone},
			"t2": {TaskID: "t2", Status: session.TaskNotDone},
		},
		StartedAt:      time.Date(2026, 8, 1, 17, 0, 0, 0, time.UTC),
		LastModifiedAt: time.Date(2026, 8, 1, 17, 0, 0, 0, time.UTC),
	}
	c.Recount()
	return c
}

func TestSessionService_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		deps := setupSessionServiceTest(t)
		defer deps.db.Close()

		c, err := deps.service.Start(ctx, session.StartSessionRequest{
			TemplateID:   "tpl-1",
			TemplateName: "Closing — Bar",
			DutyType:     "Closing",
			TaskIDs:      []string{"t1", "t2", "t3"},
			StaffID:      "s1",
		})

		assert.NoError(t, err)
		assert.Equal(t, session.StatusInProgress, c.Status)
		assert.Equal(t, ownDeviceID, c.DeviceID)
		assert.Equal(t, "Bar", c.Area)
		assert.Equal(t, 3, c.TotalTasks)
		assert.Equal(t, 3, c.NotDoneCount)
		assert.Equal(t, 0, c.CompletionPercentage)
		assert.Equal(t, "Riley", c.StartedBy.Name)
		for _, task := range c.Tasks {
			assert.Equal(t, session.TaskNotDone, task.Status)
		}
		assert.Contains(t, deps.audits.actions, audit.ActionChecklistStarted)
	})

	t.Run("negative conflict with existing active session", func(t *testing.T) {
		existing := inProgressChecklist("chk-1")
		existing.DeviceID = "device-other"
		deps := setupSessionServiceTest(t, existing)
		defer deps.db.Close()

		_, err := deps.service.Start(ctx, session.StartSessionRequest{
			TemplateID:   "tpl-1",
			TemplateName: "Closing — Bar",
			DutyType:     "Closing",
			TaskIDs:      []string{"t1"},
			StaffID:      "s1",
		})

		assert.Error(t, err)
		var appErr *apperror.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperror.CodeSessionConflict, appErr.Code)

		active, ok := appErr.Details.(*session.ActiveSession)
		assert.True(t, ok)
		assert.Equal(t, "chk-1", active.ChecklistID)
		assert.False(t, active.IsOwnDevice)
	})

	t.Run("negative deactivated staff", func(t *testing.T) {
		deps := setupSessionServiceTest(t)
		defer deps.db.Close()
		deps.staff.rows["s1"].Active = false

		_, err := deps.service.Start(ctx, session.StartSessionRequest{
			TemplateID:   "tpl-1",
			TemplateName: "Closing — Bar",
			DutyType:     "Closing",
			TaskIDs:      []string{"t1"},
			StaffID:      "s1",
		})

		assert.Error(t, err)
	})
}

func TestSessionService_CheckActive(t *testing.T) {
	ctx := context.Background()

	t.Run("no active session", func(t *testing.T) {
		deps := setupSessionServiceTest(t)
		defer deps.db.Close()

		active, err := deps.service.CheckActive(ctx, "tpl-1")

		assert.NoError(t, err)
		assert.Nil(t, active)
	})

	t.Run("most recently modified wins", func(t *testing.T) {
		older := inProgressChecklist("chk-old")
		newer := inProgressChecklist("chk-new")
		newer.LastModifiedAt = older.LastModifiedAt.Add(time.Hour)
		deps := setupSessionServiceTest(t, older, newer)
		defer deps.db.Close()

		active, err := deps.service.CheckActive(ctx, "tpl-1")

		assert.NoError(t, err)
		assert.Equal(t, "chk-new", active.ChecklistID)
		assert.True(t, active.IsOwnDevice)
	})
}

func TestSessionService_Resume(t *testing.T) {
	ctx := context.Background()

	t.Run("success on owning device", func(t *testing.T) {
		deps := setupSessionServiceTest(t, inProgressChecklist("chk-1"))
		defer deps.db.Close()

		c, err := deps.service.Resume(ctx, "chk-1")

		assert.NoError(t, err)
		assert.Equal(t, "chk-1", c.ID)
	})

	t.Run("negative wrong device", func(t *testing.T) {
		other := inProgressChecklist("chk-1")
		other.DeviceID = "device-other"
		deps := setupSessionServiceTest(t, other)
		defer deps.db.Close()

		_, err := deps.service.Resume(ctx, "chk-1")

		var appErr *apperror.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperror.CodeWrongDevice, appErr.Code)
	})

	t.Run("negative terminal checklist", func(t *testing.T) {
		closed := inProgressChecklist("chk-1")
		closed.Status = session.StatusForceClosed
		deps := setupSessionServiceTest(t, closed)
		defer deps.db.Close()

		_, err := deps.service.Resume(ctx, "chk-1")

		var appErr *apperror.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperror.CodeInvalidState, appErr.Code)
	})
}

func TestSessionService_UpdateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("success recomputes counters", func(t *testing.T) {
		deps := setupSessionServiceTest(t, inProgressChecklist("chk-1"))
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		c, err := deps.service.UpdateTask(ctx, "chk-1", session.UpdateTaskRequest{
			TaskID:  "t1",
			Status:  "done",
			StaffID: "s1",
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, c.DoneCount)
		assert.Equal(t, 1, c.NotDoneCount)
		assert.Equal(t, 50, c.CompletionPercentage)
		assert.NotNil(t, c.Tasks["t1"].CompletedAt)
		assert.Equal(t, "Riley", c.Tasks["t1"].CompletedBy.Name)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("na tasks leave the denominator", func(t *testing.T) {
		deps := setupSessionServiceTest(t, inProgressChecklist("chk-1"))
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		expectTx(t, deps.sqlMock, true)
		_, err := deps.service.UpdateTask(ctx, "chk-1", session.UpdateTaskRequest{
			TaskID: "t1", Status: "done", StaffID: "s1",
		})
		assert.NoError(t, err)
		c, err := deps.service.UpdateTask(ctx, "chk-1", session.UpdateTaskRequest{
			TaskID: "t2", Status: "na", StaffID: "s1",
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, c.DoneCount)
		assert.Equal(t, 1, c.NACount)
		assert.Equal(t, 100, c.CompletionPercentage)
	})

	t.Run("negative manager override not_done requires a note", func(t *testing.T) {
		deps := setupSessionServiceTest(t, inProgressChecklist("chk-1"))
		defer deps.db.Close()

		_, err := deps.service.UpdateTask(ctx, "chk-1", session.UpdateTaskRequest{
			TaskID:          "t1",
			Status:          "not_done",
			StaffID:         "m1",
			ManagerOverride: true,
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "note is required")
	})

	t.Run("negative unknown task", func(t *testing.T) {
		deps := setupSessionServiceTest(t, inProgressChecklist("chk-1"))
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		_, err := deps.service.UpdateTask(ctx, "chk-1", session.UpdateTaskRequest{
			TaskID: "ghost", Status: "done", StaffID: "s1",
		})

		assert.Error(t, err)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative wrong device", func(t *testing.T) {
		other := inProgressChecklist("chk-1")
		other.DeviceID = "device-other"
		deps := setupSessionServiceTest(t, other)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		_, err := deps.service.UpdateTask(ctx, "chk-1", session.UpdateTaskRequest{
			TaskID: "t1", Status: "done", StaffID: "s1",
		})

		var appErr *apperror.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperror.CodeWrongDevice, appErr.Code)
	})
}

func TestSessionService_Approve(t *testing.T) {
	ctx := context.Background()

	t.Run("success enqueues exactly one submission", func(t *testing.T) {
		deps := setupSessionServiceTest(t, inProgressChecklist("chk-1"))
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		c, err := deps.service.Approve(ctx, "chk-1", session.ApproveRequest{
			ManagerID:  "m1",
			PIN:        "4812",
			ShiftNotes: "Quiet night",
		})

		assert.NoError(t, err)
		assert.Equal(t, session.StatusApproved, c.Status)
		assert.Equal(t, "Dana", c.Manager.Name)
		assert.NotNil(t, c.ApprovedAt)
		assert.NotNil(t, c.SubmittedAt)
		assert.Equal(t, "Quiet night", c.ShiftNotes)

		assert.Len(t, deps.outbox.created, 1)
		sub := deps.outbox.created[0]
		assert.Equal(t, "chk-1", sub.ChecklistID)
		assert.Equal(t, outbox.StatusPending, sub.Status)
		assert.Equal(t, outbox.PDFPending, sub.PDFStatus)
		assert.Equal(t, 0, sub.RetryCount)
		assert.Equal(t, 5, sub.MaxRetries)
		assert.Equal(t, "2026-08-01", sub.Snapshot.Date)
		assert.Equal(t, "Bar", sub.Snapshot.Area)
		assert.Equal(t, "Dana", sub.Snapshot.Manager.Name)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("approval from pending_review", func(t *testing.T) {
		parked := inProgressChecklist("chk-1")
		parked.Status = session.StatusPendingReview
		submitted := time.Date(2026, 8, 1, 21, 0, 0, 0, time.UTC)
		parked.SubmittedAt = &submitted
		deps := setupSessionServiceTest(t, parked)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		c, err := deps.service.Approve(ctx, "chk-1", session.ApproveRequest{ManagerID: "m1", PIN: "4812"})

		assert.NoError(t, err)
		assert.Equal(t, session.StatusApproved, c.Status)
		assert.Equal(t, submitted, *c.SubmittedAt)
	})

	t.Run("existing submission is not duplicated", func(t *testing.T) {
		deps := setupSessionServiceTest(t, inProgressChecklist("chk-1"))
		defer deps.db.Close()
		deps.outbox.exists = true

		expectTx(t, deps.sqlMock, true)
		_, err := deps.service.Approve(ctx, "chk-1", session.ApproveRequest{ManagerID: "m1", PIN: "4812"})

		assert.NoError(t, err)
		assert.Empty(t, deps.outbox.created)
	})

	t.Run("negative wrong pin maps attempts remaining", func(t *testing.T) {
		deps := setupSessionServiceTest(t, inProgressChecklist("chk-1"))
		defer deps.db.Close()
		deps.pins.result = pinauth.VerifyResult{
			ErrorCode:         pinauth.OutcomeInvalidPIN,
			AttemptsRemaining: 1,
		}

		_, err := deps.service.Approve(ctx, "chk-1", session.ApproveRequest{ManagerID: "m1", PIN: "0000"})

		var appErr *apperror.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperror.CodeInvalidPIN, appErr.Code)
		assert.Empty(t, deps.outbox.created)
	})

	t.Run("negative locked account", func(t *testing.T) {
		deps := setupSessionServiceTest(t, inProgressChecklist("chk-1"))
		defer deps.db.Close()
		deps.pins.result = pinauth.VerifyResult{
			ErrorCode:        pinauth.OutcomeAccountLocked,
			LockoutRemaining: 240,
		}

		_, err := deps.service.Approve(ctx, "chk-1", session.ApproveRequest{ManagerID: "m1", PIN: "0000"})

		var appErr *apperror.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperror.CodeAccountLocked, appErr.Code)
	})

	t.Run("negative already synced", func(t *testing.T) {
		done := inProgressChecklist("chk-1")
		done.Status = session.StatusSynced
		deps := setupSessionServiceTest(t, done)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		_, err := deps.service.Approve(ctx, "chk-1", session.ApproveRequest{ManagerID: "m1", PIN: "4812"})

		assert.Error(t, err)
	})
}

func TestSessionService_ForceClose(t *testing.T) {
	ctx := context.Background()
	manager := staff.Ref{ID: "m1", Name: "Dana", Role: "manager"}

	t.Run("success on any non-terminal status regardless of device", func(t *testing.T) {
		other := inProgressChecklist("chk-1")
		other.DeviceID = "device-other"
		deps := setupSessionServiceTest(t, other)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		c, err := deps.service.ForceClose(ctx, "chk-1", manager, "Left open overnight")

		assert.NoError(t, err)
		assert.Equal(t, session.StatusForceClosed, c.Status)
		assert.Equal(t, "Dana", c.ForceClosed.Manager.Name)
		assert.Equal(t, "Left open overnight", c.ForceClosed.Reason)
		assert.Contains(t, deps.audits.actions, audit.ActionSessionForceClosed)
	})

	t.Run("negative already terminal", func(t *testing.T) {
		closed := inProgressChecklist("chk-1")
		closed.Status = session.StatusForceClosed
		deps := setupSessionServiceTest(t, closed)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		_, err := deps.service.ForceClose(ctx, "chk-1", manager, "again")

		assert.Error(t, err)
	})
}

func TestChecklist_Recount(t *testing.T) {
	c := &session.Checklist{Tasks: map[string]session.TaskCompletion{}}
	for i := 0; i < 8; i++ {
		id := string(rune('a' + i))
		c.Tasks[id] = session.TaskCompletion{TaskID: id, Status: session.TaskDone}
	}
	c.Tasks["y"] = session.TaskCompletion{TaskID: "y", Status: session.TaskNA}
	c.Tasks["z"] = session.TaskCompletion{TaskID: "z", Status: session.TaskNA}

	c.Recount()

	assert.Equal(t, 10, c.TotalTasks)
	assert.Equal(t, 8, c.DoneCount)
	assert.Equal(t, 2, c.NACount)
	assert.Equal(t, 0, c.NotDoneCount)
	// 8 done out of (10 - 2) applicable tasks.
	assert.Equal(t, 100, c.CompletionPercentage)

	t.Run("all na counts as fully complete", func(t *testing.T) {
		c := &session.Checklist{Tasks: map[string]session.TaskCompletion{
			"a": {TaskID: "a", Status: session.TaskNA},
		}}
		c.Recount()
		assert.Equal(t, 100, c.CompletionPercentage)
	})

	t.Run("rounding", func(t *testing.T) {
		c := &session.Checklist{Tasks: map[string]session.TaskCompletion{
			"a": {TaskID: "a", Status: session.TaskDone},
			"b": {TaskID: "b", Status: session.TaskDone},
			"c": {TaskID: "c", Status: session.TaskNotDone},
		}}
		c.Recount()
		assert.Equal(t, 67, c.CompletionPercentage)
	})
}
