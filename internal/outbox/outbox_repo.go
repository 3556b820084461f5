package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"shiftcheck/internal/mirror"
)

//go:generate mockgen -source=outbox_repo.go -destination=mock/outbox_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, s *Submission) error
	GetByID(ctx context.Context, id string) (*Submission, error)
	Update(ctx context.Context, s *Submission) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]Submission, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]Submission, error)
	CountActive(ctx context.Context) (int, error)
	ExistsForChecklist(ctx context.Context, checklistID string) (bool, error)
	ResetForRetry(ctx context.Context, id string, now time.Time) error
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

const submissionColumns = `
	id, checklist_id, status, pdf_status,
	sheets_row_id, drive_file_id, drive_file_url,
	retry_count, max_retries,
	created_at, last_attempt_at, next_attempt_at, completed_at,
	error_log, snapshot, pdf_data
`

func (r *repository) Create(ctx context.Context, s *Submission) error {
	errorLog, snapshot, err := marshalSubmissionJSON(s)
	if err != nil {
		return err
	}

	query := `
INSERT INTO submissions (` + submissionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	_, err = r.q().ExecContext(ctx, query,
		s.ID, s.ChecklistID, s.Status, s.PDFStatus,
		s.SheetsRowID, s.DriveFileID, s.DriveFileURL,
		s.RetryCount, s.MaxRetries,
		s.CreatedAt, s.LastAttemptAt, s.NextAttemptAt, s.CompletedAt,
		errorLog, snapshot, s.PDFData,
	)
	return err
}

// Update persists the full mutable state in one write. The pipeline calls
// this after every step so progress is never held only in memory.
func (r *repository) Update(ctx context.Context, s *Submission) error {
	errorLog, snapshot, err := marshalSubmissionJSON(s)
	if err != nil {
		return err
	}

	query := `
UPDATE submissions SET
	status = ?, pdf_status = ?,
	sheets_row_id = ?, drive_file_id = ?, drive_file_url = ?,
	retry_count = ?, max_retries = ?,
	last_attempt_at = ?, next_attempt_at = ?, completed_at = ?,
	error_log = ?, snapshot = ?, pdf_data = ?
WHERE id = ?
`
	res, err := r.q().ExecContext(ctx, query,
		s.Status, s.PDFStatus,
		s.SheetsRowID, s.DriveFileID, s.DriveFileURL,
		s.RetryCount, s.MaxRetries,
		s.LastAttemptAt, s.NextAttemptAt, s.CompletedAt,
		errorLog, snapshot, s.PDFData,
		s.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = ?`
	return scanSubmission(r.q().QueryRowContext(ctx, query, id))
}

// ListDue returns submissions ready for an attempt: in-flight status and
// past their scheduled retry time (or never attempted).
func (r *repository) ListDue(ctx context.Context, now time.Time, limit int) ([]Submission, error) {
	query := `
SELECT ` + submissionColumns + `
FROM submissions
WHERE status IN (?, ?)
	AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
ORDER BY created_at ASC
LIMIT ?
`
	rows, err := r.q().QueryContext(ctx, query, StatusPending, StatusSheetsDone, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubmissions(rows, limit)
}

func (r *repository) ListByStatus(ctx context.Context, status string, limit int) ([]Submission, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		query := `SELECT ` + submissionColumns + ` FROM submissions ORDER BY created_at DESC LIMIT ?`
		rows, err = r.q().QueryContext(ctx, query, limit)
	} else {
		query := `SELECT ` + submissionColumns + ` FROM submissions WHERE status = ? ORDER BY created_at DESC LIMIT ?`
		rows, err = r.q().QueryContext(ctx, query, status, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubmissions(rows, limit)
}

func (r *repository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.q().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE status IN (?, ?)`,
		StatusPending, StatusSheetsDone,
	).Scan(&n)
	return n, err
}

// ExistsForChecklist guards the exactly-once enqueue per approved checklist.
func (r *repository) ExistsForChecklist(ctx context.Context, checklistID string) (bool, error) {
	var n int
	err := r.q().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE checklist_id = ?`,
		checklistID,
	).Scan(&n)
	return n > 0, err
}

// ResetForRetry re-arms a failed submission from the operator surface. The
// error log is kept; only the scheduling state resets.
func (r *repository) ResetForRetry(ctx context.Context, id string, now time.Time) error {
	query := `
UPDATE submissions SET
	status = CASE WHEN sheets_row_id != '' THEN ? ELSE ? END,
	pdf_status = CASE WHEN pdf_status = ? THEN ? ELSE pdf_status END,
	retry_count = 0,
	next_attempt_at = ?
WHERE id = ? AND status = ?
`
	res, err := r.q().ExecContext(ctx, query,
		StatusSheetsDone, StatusPending,
		PDFFailed, PDFPending,
		now, id, StatusFailed,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func marshalSubmissionJSON(s *Submission) (errorLog, snapshot []byte, err error) {
	if s.ErrorLog == nil {
		s.ErrorLog = []mirror.StepError{}
	}
	errorLog, err = json.Marshal(s.ErrorLog)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal error_log: %w", err)
	}
	snapshot, err = json.Marshal(s.Snapshot)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return errorLog, snapshot, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*Submission, error) {
	var (
		s             Submission
		lastAttemptAt sql.NullTime
		nextAttemptAt sql.NullTime
		completedAt   sql.NullTime
		errorLog      []byte
		snapshot      []byte
	)

	err := row.Scan(
		&s.ID, &s.ChecklistID, &s.Status, &s.PDFStatus,
		&s.SheetsRowID, &s.DriveFileID, &s.DriveFileURL,
		&s.RetryCount, &s.MaxRetries,
		&s.CreatedAt, &lastAttemptAt, &nextAttemptAt, &completedAt,
		&errorLog, &snapshot, &s.PDFData,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(errorLog, &s.ErrorLog); err != nil {
		return nil, fmt.Errorf("unmarshal error_log: %w", err)
	}
	if err := json.Unmarshal(snapshot, &s.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if lastAttemptAt.Valid {
		s.LastAttemptAt = &lastAttemptAt.Time
	}
	if nextAttemptAt.Valid {
		s.NextAttemptAt = &nextAttemptAt.Time
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	return &s, nil
}

func collectSubmissions(rows *sql.Rows, capacity int) ([]Submission, error) {
	out := make([]Submission, 0, capacity)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
