package outbox

import (
	"time"

	"shiftcheck/internal/mirror"
)

const (
	StatusPending    = "pending"
	StatusSheetsDone = "sheets_done"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

const (
	PDFPending   = "pending"
	PDFGenerated = "generated"
	PDFUploaded  = "uploaded"
	PDFFailed    = "failed"
)

const DefaultMaxRetries = 5

// Submission is one approved checklist queued for mirroring. The id doubles
// as the idempotency key presented to every external write. Snapshot is
// captured at approval and never re-derived from the live checklist.
//
// PDFData holds the rendered document between pdf_generate and pdf_upload so
// a restart in between resumes from the persisted bytes rather than
// re-rendering.
type Submission struct {
	ID            string                    `gorm:"column:id;primaryKey" json:"id"`
	ChecklistID   string                    `gorm:"column:checklist_id;not null;index" json:"checklist_id"`
	Status        string                    `gorm:"column:status;type:varchar(20);not null;index;index:idx_submissions_status_created,priority:1" json:"status"`
	PDFStatus     string                    `gorm:"column:pdf_status;type:varchar(20);not null" json:"pdf_status"`
	SheetsRowID   string                    `gorm:"column:sheets_row_id" json:"sheets_row_id,omitempty"`
	DriveFileID   string                    `gorm:"column:drive_file_id" json:"drive_file_id,omitempty"`
	DriveFileURL  string                    `gorm:"column:drive_file_url" json:"drive_file_url,omitempty"`
	RetryCount    int                       `gorm:"column:retry_count;not null" json:"retry_count"`
	MaxRetries    int                       `gorm:"column:max_retries;not null" json:"max_retries"`
	CreatedAt     time.Time                 `gorm:"column:created_at;not null;index:idx_submissions_status_created,priority:2" json:"created_at"`
	LastAttemptAt *time.Time                `gorm:"column:last_attempt_at" json:"last_attempt_at,omitempty"`
	NextAttemptAt *time.Time                `gorm:"column:next_attempt_at" json:"next_attempt_at,omitempty"`
	CompletedAt   *time.Time                `gorm:"column:completed_at" json:"completed_at,omitempty"`
	ErrorLog      []mirror.StepError        `gorm:"column:error_log;type:text;serializer:json" json:"error_log,omitempty"`
	Snapshot      mirror.SubmissionSnapshot `gorm:"column:snapshot;type:text;serializer:json" json:"snapshot"`
	PDFData       []byte                    `gorm:"column:pdf_data" json:"-"`
}

func (Submission) TableName() string {
	return "submissions"
}

// Backoff returns the delay before the next attempt given the number of
// retries already consumed: 1s, 2s, 4s, ... capped at 60s.
func Backoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > 6 {
		return 60 * time.Second
	}
	d := time.Second << uint(retryCount)
	if d > 60*time.Second {
		return 60 * time.Second
	}
	return d
}
