package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"shiftcheck/internal/staff"
)

// Raw-SQL repository: checklist writes share transactions with submission
// writes (approve = status change + outbox enqueue in one commit), so this
// repository honors WithTx instead of going through the ORM.

//go:generate mockgen -source=session_repo.go -destination=mock/session_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, c *Checklist) error
	GetByID(ctx context.Context, id string) (*Checklist, error)
	Update(ctx context.Context, c *Checklist) error
	FindActiveByTemplate(ctx context.Context, templateID string) ([]Checklist, error)
	MarkSynced(ctx context.Context, id string, at time.Time) error
	MarkSyncFailed(ctx context.Context, id string) error
	RevertSyncFailed(ctx context.Context, id string, at time.Time) error
}

type repository struct {
	db *sql.DB
	tx *sql.Tx
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{db: r.db, tx: tx}
}

type querier interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func (r *repository) q() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const checklistColumns = `
	id, template_id, template_name, area, duty_type, status,
	started_by, manager, device_id, tasks,
	done_count, not_done_count, na_count, total_tasks, completion_percentage,
	started_at, last_modified_at, submitted_at, approved_at, synced_at,
	shift_notes, force_closed
`

func (r *repository) Create(ctx context.Context, c *Checklist) error {
	startedBy, tasks, manager, forceClosed, err := marshalJSONColumns(c)
	if err != nil {
		return err
	}

	query := `
INSERT INTO checklists (` + checklistColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	_, err = r.q().ExecContext(ctx, query,
		c.ID, c.TemplateID, c.TemplateName, c.Area, c.DutyType, string(c.Status),
		startedBy, manager, c.DeviceID, tasks,
		c.DoneCount, c.NotDoneCount, c.NACount, c.TotalTasks, c.CompletionPercentage,
		c.StartedAt, c.LastModifiedAt, c.SubmittedAt, c.ApprovedAt, c.SyncedAt,
		c.ShiftNotes, forceClosed,
	)
	return err
}

func (r *repository) Update(ctx context.Context, c *Checklist) error {
	startedBy, tasks, manager, forceClosed, err := marshalJSONColumns(c)
	if err != nil {
		return err
	}

	query := `
UPDATE checklists SET
	status = ?, started_by = ?, manager = ?, tasks = ?,
	done_count = ?, not_done_count = ?, na_count = ?, total_tasks = ?, completion_percentage = ?,
	last_modified_at = ?, submitted_at = ?, approved_at = ?, synced_at = ?,
	shift_notes = ?, force_closed = ?
WHERE id = ?
`
	res, err := r.q().ExecContext(ctx, query,
		string(c.Status), startedBy, manager, tasks,
		c.DoneCount, c.NotDoneCount, c.NACount, c.TotalTasks, c.CompletionPercentage,
		c.LastModifiedAt, c.SubmittedAt, c.ApprovedAt, c.SyncedAt,
		c.ShiftNotes, forceClosed,
		c.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Checklist, error) {
	query := `SELECT ` + checklistColumns + ` FROM checklists WHERE id = ?`
	row := r.q().QueryRowContext(ctx, query, id)
	return scanChecklist(row)
}

// FindActiveByTemplate returns in-flight instances for a template, newest
// activity first with id as the deterministic tie-break.
func (r *repository) FindActiveByTemplate(ctx context.Context, templateID string) ([]Checklist, error) {
	query := `
SELECT ` + checklistColumns + `
FROM checklists
WHERE template_id = ? AND status IN (?, ?)
ORDER BY last_modified_at DESC, id DESC
`
	rows, err := r.q().QueryContext(ctx, query, templateID, string(StatusInProgress), string(StatusPendingReview))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Checklist
	for rows.Next() {
		c, err := scanChecklist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *repository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE checklists SET status = ?, synced_at = ?, last_modified_at = ? WHERE id = ? AND status = ?`
	_, err := r.q().ExecContext(ctx, query, string(StatusSynced), at, at, id, string(StatusApproved))
	return err
}

func (r *repository) MarkSyncFailed(ctx context.Context, id string) error {
	query := `UPDATE checklists SET status = ? WHERE id = ? AND status = ?`
	_, err := r.q().ExecContext(ctx, query, string(StatusSyncFailed), id, string(StatusApproved))
	return err
}

// RevertSyncFailed puts a checklist back to approved when its submission is
// manually re-armed for another sync run.
func (r *repository) RevertSyncFailed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE checklists SET status = ?, last_modified_at = ? WHERE id = ? AND status = ?`
	_, err := r.q().ExecContext(ctx, query, string(StatusApproved), at, id, string(StatusSyncFailed))
	return err
}

func marshalJSONColumns(c *Checklist) (startedBy, tasks []byte, manager, forceClosed any, err error) {
	startedBy, err = json.Marshal(c.StartedBy)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal started_by: %w", err)
	}
	if c.Tasks == nil {
		c.Tasks = map[string]TaskCompletion{}
	}
	tasks, err = json.Marshal(c.Tasks)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal tasks: %w", err)
	}
	if c.Manager != nil {
		b, merr := json.Marshal(c.Manager)
		if merr != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal manager: %w", merr)
		}
		manager = b
	}
	if c.ForceClosed != nil {
		b, ferr := json.Marshal(c.ForceClosed)
		if ferr != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal force_closed: %w", ferr)
		}
		forceClosed = b
	}
	return startedBy, tasks, manager, forceClosed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChecklist(row rowScanner) (*Checklist, error) {
	var (
		c           Checklist
		status      string
		startedBy   []byte
		manager     []byte
		tasks       []byte
		forceClosed []byte
		submittedAt sql.NullTime
		approvedAt  sql.NullTime
		syncedAt    sql.NullTime
	)

	err := row.Scan(
		&c.ID, &c.TemplateID, &c.TemplateName, &c.Area, &c.DutyType, &status,
		&startedBy, &manager, &c.DeviceID, &tasks,
		&c.DoneCount, &c.NotDoneCount, &c.NACount, &c.TotalTasks, &c.CompletionPercentage,
		&c.StartedAt, &c.LastModifiedAt, &submittedAt, &approvedAt, &syncedAt,
		&c.ShiftNotes, &forceClosed,
	)
	if err != nil {
		return nil, err
	}

	c.Status = Status(status)
	if err := json.Unmarshal(startedBy, &c.StartedBy); err != nil {
		return nil, fmt.Errorf("unmarshal started_by: %w", err)
	}
	if err := json.Unmarshal(tasks, &c.Tasks); err != nil {
		return nil, fmt.Errorf("unmarshal tasks: %w", err)
	}
	if len(manager) > 0 {
		var m staff.Ref
		if err := json.Unmarshal(manager, &m); err != nil {
			return nil, fmt.Errorf("unmarshal manager: %w", err)
		}
		c.Manager = &m
	}
	if len(forceClosed) > 0 {
		var fc ForceCloseRecord
		if err := json.Unmarshal(forceClosed, &fc); err != nil {
			return nil, fmt.Errorf("unmarshal force_closed: %w", err)
		}
		c.ForceClosed = &fc
	}
	if submittedAt.Valid {
		c.SubmittedAt = &submittedAt.Time
	}
	if approvedAt.Valid {
		c.ApprovedAt = &approvedAt.Time
	}
	if syncedAt.Valid {
		c.SyncedAt = &syncedAt.Time
	}
	return &c, nil
}
