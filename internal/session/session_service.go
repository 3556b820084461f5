package session

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"shiftcheck/internal/audit"
	"shiftcheck/internal/mirror"
	"shiftcheck/internal/outbox"
	"shiftcheck/internal/pinauth"
	"shiftcheck/internal/settings"
	"shiftcheck/internal/shared/apperror"
	"shiftcheck/internal/shared/clock"
	"shiftcheck/internal/staff"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PINVerifier is the slice of the PIN authenticator the approval boundary
// needs.
type PINVerifier interface {
	Verify(ctx context.Context, managerID, pin string) (pinauth.VerifyResult, error)
}

// SettingsProvider supplies venue metadata for submission snapshots.
type SettingsProvider interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

//go:generate mockgen -source=session_service.go -destination=mock/session_service_mock.go -package=mock
type Service interface {
	Start(ctx context.Context, req StartSessionRequest) (*Checklist, error)
	CheckActive(ctx context.Context, templateID string) (*ActiveSession, error)
	Resume(ctx context.Context, checklistID string) (*Checklist, error)
	Get(ctx context.Context, checklistID string) (*Checklist, error)
	UpdateTask(ctx context.Context, checklistID string, req UpdateTaskRequest) (*Checklist, error)
	SubmitForReview(ctx context.Context, checklistID string) (*Checklist, error)
	Approve(ctx context.Context, checklistID string, req ApproveRequest) (*Checklist, error)
	ForceClose(ctx context.Context, checklistID string, manager staff.Ref, reason string) (*Checklist, error)
}

type service struct {
	db        *sql.DB
	repo      Repository
	outbox    outbox.Repository
	staffRepo staff.Repository
	pins      PINVerifier
	cfg       SettingsProvider
	audits    audit.Service
	deviceID  string
	clk       clock.Clock
	logger    *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	outboxRepo outbox.Repository,
	staffRepo staff.Repository,
	pins PINVerifier,
	cfg SettingsProvider,
	audits audit.Service,
	deviceID string,
	clk clock.Clock,
	logger *zap.Logger,
) Service {
	l := zap.L()
	if logger != nil {
		l = logger
	}
	return &service{
		db:        db,
		repo:      repo,
		outbox:    outboxRepo,
		staffRepo: staffRepo,
		pins:      pins,
		cfg:       cfg,
		audits:    audits,
		deviceID:  deviceID,
		clk:       clk,
		logger:    l.Named("session.service"),
	}
}

var (
	errWrongDevice = apperror.New(apperror.CodeWrongDevice,
		"This checklist was started on another device", http.StatusConflict)
	errNotEditable = apperror.New(apperror.CodeInvalidState,
		"This checklist can no longer be edited", http.StatusConflict)
	errNoteRequired = apperror.New(apperror.CodeInvalidInput,
		"A note is required when a manager marks a task not done", http.StatusBadRequest)
	errPINRequired = apperror.New(apperror.CodeUnauthorized,
		"Manager PIN verification failed", http.StatusUnauthorized)
)

func conflictError(active *ActiveSession) error {
	return apperror.New(apperror.CodeSessionConflict,
		"An active session already exists for this checklist", http.StatusConflict).
		WithDetails(active)
}

// Start creates a new checklist instance owned by this device. The conflict
// check is advisory: two devices starting inside the same query window can
// both succeed, and a manager resolves the duplicate with a force-close.
func (s *service) Start(ctx context.Context, req StartSessionRequest) (*Checklist, error) {
	active, err := s.CheckActive(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, conflictError(active)
	}

	member, err := s.staffRepo.FindByID(ctx, req.StaffID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	if !member.Active {
		return nil, apperror.New(apperror.CodeInvalidInput, "Staff member is deactivated", http.StatusBadRequest)
	}

	cfg, err := s.cfg.Get(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	tasks := make(map[string]TaskCompletion, len(req.TaskIDs))
	for _, id := range req.TaskIDs {
		tasks[id] = TaskCompletion{TaskID: id, Status: TaskNotDone}
	}

	c := &Checklist{
		ID:             uuid.NewString(),
		TemplateID:     req.TemplateID,
		TemplateName:   req.TemplateName,
		Area:           cfg.Area,
		DutyType:       req.DutyType,
		Status:         StatusInProgress,
		StartedBy:      member.Ref(),
		DeviceID:       s.deviceID,
		Tasks:          tasks,
		StartedAt:      now,
		LastModifiedAt: now,
	}
	c.Recount()

	if err := s.repo.Create(ctx, c); err != nil {
		s.logger.Error("start session failed", zap.String("template_id", req.TemplateID), zap.Error(err))
		return nil, err
	}

	s.audits.Record(ctx, audit.ActionChecklistStarted, "checklist", c.ID, member.ID, map[string]any{
		"template_id": c.TemplateID,
		"duty_type":   c.DutyType,
	})
	s.logger.Info("session started",
		zap.String("checklist_id", c.ID),
		zap.String("template_id", c.TemplateID),
		zap.Int("total_tasks", c.TotalTasks),
	)
	return c, nil
}

// CheckActive picks the most recently modified in-flight instance for a
// template. There is no central lock; this is a query-time best effort.
func (s *service) CheckActive(ctx context.Context, templateID string) (*ActiveSession, error) {
	rows, err := s.repo.FindActiveByTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// Repo orders by last_modified_at DESC, id DESC: first row wins.
	c := rows[0]
	return &ActiveSession{
		ChecklistID:    c.ID,
		TemplateID:     c.TemplateID,
		Status:         c.Status,
		StartedBy:      c.StartedBy,
		StartedAt:      c.StartedAt,
		LastModifiedAt: c.LastModifiedAt,
		DeviceID:       c.DeviceID,
		IsOwnDevice:    c.DeviceID == s.deviceID,
	}, nil
}

// Resume hands back an in-flight checklist for continued editing. Only the
// owning device may resume; anyone else goes through a manager force-close.
func (s *service) Resume(ctx context.Context, checklistID string) (*Checklist, error) {
	c, err := s.get(ctx, checklistID)
	if err != nil {
		return nil, err
	}
	if c.DeviceID != s.deviceID {
		return nil, errWrongDevice
	}
	if !c.Status.Active() {
		return nil, errNotEditable
	}
	return c, nil
}

func (s *service) Get(ctx context.Context, checklistID string) (*Checklist, error) {
	return s.get(ctx, checklistID)
}

func (s *service) get(ctx context.Context, checklistID string) (*Checklist, error) {
	c, err := s.repo.GetByID(ctx, checklistID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// UpdateTask rewrites one task entry and recomputes all counters from the
// full map inside a single transaction. Writes happen eagerly on every
// update; nothing waits for submission time.
func (s *service) UpdateTask(ctx context.Context, checklistID string, req UpdateTaskRequest) (*Checklist, error) {
	status := TaskStatus(req.Status)
	if !status.Valid() {
		return nil, apperror.InvalidField("Status")
	}
	if status == TaskNotDone && req.ManagerOverride && req.Note == "" {
		return nil, errNoteRequired
	}

	member, err := s.staffRepo.FindByID(ctx, req.StaffID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	c, err := qtx.GetByID(ctx, checklistID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	if c.DeviceID != s.deviceID {
		return nil, errWrongDevice
	}
	if c.Status != StatusInProgress {
		return nil, errNotEditable
	}
	if _, ok := c.Tasks[req.TaskID]; !ok {
		return nil, apperror.New(apperror.CodeNotFound, "Unknown task for this checklist", http.StatusNotFound)
	}

	now := s.clk.Now()
	entry := TaskCompletion{
		TaskID:     req.TaskID,
		Status:     status,
		Note:       req.Note,
		InputValue: req.InputValue,
	}
	if status == TaskDone || status == TaskNA {
		ref := member.Ref()
		entry.CompletedAt = &now
		entry.CompletedBy = &ref
	}
	c.Tasks[req.TaskID] = entry
	c.Recount()
	c.LastModifiedAt = now

	if err := qtx.Update(ctx, c); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.audits.Record(ctx, audit.ActionTaskUpdated, "checklist", c.ID, member.ID, map[string]any{
		"task_id": req.TaskID,
		"status":  req.Status,
	})
	return c, nil
}

// SubmitForReview moves an in-progress checklist to pending_review, parking
// it for a manager PIN.
func (s *service) SubmitForReview(ctx context.Context, checklistID string) (*Checklist, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	c, err := qtx.GetByID(ctx, checklistID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	if c.DeviceID != s.deviceID {
		return nil, errWrongDevice
	}
	if c.Status != StatusInProgress {
		return nil, errNotEditable
	}

	now := s.clk.Now()
	c.Status = StatusPendingReview
	c.SubmittedAt = &now
	c.LastModifiedAt = now

	if err := qtx.Update(ctx, c); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.audits.Record(ctx, audit.ActionChecklistSubmitted, "checklist", c.ID, c.StartedBy.ID, nil)
	return c, nil
}

// Approve verifies the manager PIN, transitions the checklist to approved
// and enqueues exactly one submission; the status change and the enqueue
// commit together or not at all. Single-staff checklists may approve
// straight from in_progress.
func (s *service) Approve(ctx context.Context, checklistID string, req ApproveRequest) (*Checklist, error) {
	res, err := s.pins.Verify(ctx, req.ManagerID, req.PIN)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		switch res.ErrorCode {
		case pinauth.OutcomeAccountLocked:
			return nil, apperror.New(apperror.CodeAccountLocked, "Account is locked", http.StatusLocked).
				WithDetails(map[string]any{"lockout_remaining": res.LockoutRemaining})
		case pinauth.OutcomeInvalidPIN:
			return nil, apperror.New(apperror.CodeInvalidPIN, "Incorrect PIN", http.StatusUnauthorized).
				WithDetails(map[string]any{"attempts_remaining": res.AttemptsRemaining})
		default:
			return nil, errPINRequired
		}
	}

	manager, err := s.staffRepo.FindByID(ctx, req.ManagerID)
	if err != nil {
		return nil, errPINRequired
	}

	cfg, err := s.cfg.Get(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	c, err := qtx.GetByID(ctx, checklistID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	if c.Status != StatusInProgress && c.Status != StatusPendingReview {
		return nil, errNotEditable
	}

	now := s.clk.Now()
	ref := manager.Ref()
	c.Status = StatusApproved
	c.Manager = &ref
	c.ApprovedAt = &now
	if c.SubmittedAt == nil {
		c.SubmittedAt = &now
	}
	if req.ShiftNotes != "" {
		c.ShiftNotes = req.ShiftNotes
	}
	c.LastModifiedAt = now

	if err := qtx.Update(ctx, c); err != nil {
		return nil, err
	}

	outboxQtx := s.outbox.WithTx(tx)
	exists, err := outboxQtx.ExistsForChecklist(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !exists {
		sub := &outbox.Submission{
			ID:          uuid.NewString(),
			ChecklistID: c.ID,
			Status:      outbox.StatusPending,
			PDFStatus:   outbox.PDFPending,
			MaxRetries:  cfg.MaxRetries,
			CreatedAt:   now,
			Snapshot:    buildSnapshot(c, cfg.Area),
		}
		if err := outboxQtx.Create(ctx, sub); err != nil {
			s.logger.Error("submission enqueue failed", zap.String("checklist_id", c.ID), zap.Error(err))
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.audits.Record(ctx, audit.ActionChecklistApproved, "checklist", c.ID, manager.ID, map[string]any{
		"completion_percentage": c.CompletionPercentage,
	})
	s.logger.Info("checklist approved",
		zap.String("checklist_id", c.ID),
		zap.String("manager_id", manager.ID),
	)
	return c, nil
}

// ForceClose is the manager escape hatch for abandoned or contended
// sessions. It works on any non-terminal instance regardless of device.
func (s *service) ForceClose(ctx context.Context, checklistID string, manager staff.Ref, reason string) (*Checklist, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	c, err := qtx.GetByID(ctx, checklistID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, apperror.New(apperror.CodeInvalidState, "Checklist is already closed", http.StatusConflict)
	}

	now := s.clk.Now()
	c.Status = StatusForceClosed
	c.ForceClosed = &ForceCloseRecord{Manager: manager, Reason: reason, ClosedAt: now}
	c.LastModifiedAt = now

	if err := qtx.Update(ctx, c); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.audits.Record(ctx, audit.ActionSessionForceClosed, "checklist", c.ID, manager.ID, map[string]any{
		"reason": reason,
	})
	s.logger.Warn("session force closed",
		zap.String("checklist_id", c.ID),
		zap.String("manager_id", manager.ID),
		zap.String("reason", reason),
	)
	return c, nil
}

// buildSnapshot captures the immutable copy of checklist data a submission
// carries. Retries read this, never the live row.
func buildSnapshot(c *Checklist, area string) mirror.SubmissionSnapshot {
	tasks := make(map[string]mirror.TaskSnapshot, len(c.Tasks))
	for id, t := range c.Tasks {
		ts := mirror.TaskSnapshot{
			TaskID:      t.TaskID,
			Status:      string(t.Status),
			Note:        t.Note,
			InputValue:  t.InputValue,
			CompletedAt: t.CompletedAt,
		}
		if t.CompletedBy != nil {
			ts.CompletedBy = t.CompletedBy.Name
		}
		tasks[id] = ts
	}

	snap := mirror.SubmissionSnapshot{
		Date:                 c.StartedAt.Format("2006-01-02"),
		Area:                 area,
		TemplateName:         c.TemplateName,
		TemplateID:           c.TemplateID,
		DutyType:             c.DutyType,
		Staff:                mirror.StaffRef(c.StartedBy),
		CompletionPercentage: c.CompletionPercentage,
		DoneCount:            c.DoneCount,
		NotDoneCount:         c.NotDoneCount,
		NACount:              c.NACount,
		TotalTasks:           c.TotalTasks,
		StartedAt:            c.StartedAt,
		ShiftNotes:           c.ShiftNotes,
		Tasks:                tasks,
		DeviceID:             c.DeviceID,
	}
	if c.Manager != nil {
		snap.Manager = mirror.StaffRef(*c.Manager)
	}
	if c.SubmittedAt != nil {
		snap.SubmittedAt = *c.SubmittedAt
	}
	if c.ApprovedAt != nil {
		snap.ApprovedAt = *c.ApprovedAt
	}
	return snap
}
