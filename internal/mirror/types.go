package mirror

import (
	"context"
	"fmt"
	"time"
)

// Pipeline steps, in execution order.
type Step string

const (
	StepSheetsWrite  Step = "sheets_write"
	StepPDFGenerate  Step = "pdf_generate"
	StepPDFUpload    Step = "pdf_upload"
	StepSheetsUpdate Step = "sheets_update"
)

// StepError is the failure record appended to a submission's error log.
// Retryable distinguishes transient failures (timeouts, 5xx) from permanent
// ones (4xx validation against the external API).
type StepError struct {
	Timestamp  time.Time `json:"timestamp"`
	Step       Step      `json:"step"`
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode,omitempty"`
	Retryable  bool      `json:"retryable"`
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s", e.Step, e.Message)
}

// AsStepError normalizes any error from a client into a StepError. Errors
// that aren't already classified are treated as retryable transport faults.
func AsStepError(step Step, err error) *StepError {
	if se, ok := err.(*StepError); ok {
		if se.Step == "" {
			se.Step = step
		}
		return se
	}
	return &StepError{Step: step, Message: err.Error(), Retryable: true}
}

type StaffRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type TaskSnapshot struct {
	TaskID      string     `json:"task_id"`
	Status      string     `json:"status"`
	Note        string     `json:"note,omitempty"`
	InputValue  string     `json:"input_value,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`
}

// SubmissionSnapshot is the immutable copy of checklist data captured at
// submission time. Retries always operate on this, never on the live
// checklist.
type SubmissionSnapshot struct {
	Date                 string                  `json:"date"` // YYYY-MM-DD
	Area                 string                  `json:"area"`
	TemplateName         string                  `json:"templateName"`
	TemplateID           string                  `json:"templateId"`
	DutyType             string                  `json:"dutyType"` // "Opening" | "Closing"
	Staff                StaffRef                `json:"staff"`
	Manager              StaffRef                `json:"manager"`
	CompletionPercentage int                     `json:"completionPercentage"`
	DoneCount            int                     `json:"doneCount"`
	NotDoneCount         int                     `json:"notDoneCount"`
	NACount              int                     `json:"naCount"`
	TotalTasks           int                     `json:"totalTasks"`
	StartedAt            time.Time               `json:"startedAt"`
	SubmittedAt          time.Time               `json:"submittedAt"`
	ApprovedAt           time.Time               `json:"approvedAt"`
	ShiftNotes           string                  `json:"shiftNotes,omitempty"`
	Tasks                map[string]TaskSnapshot `json:"tasks"`
	DeviceID             string                  `json:"deviceId"`
}

// Validate checks the fields the submission endpoint rejects with a 400 when
// missing. A validation failure is permanent, not retryable.
func (s SubmissionSnapshot) Validate() error {
	missing := ""
	switch {
	case s.Date == "":
		missing = "date"
	case s.TemplateID == "":
		missing = "templateId"
	case s.TemplateName == "":
		missing = "templateName"
	case s.Staff.ID == "":
		missing = "staff"
	case s.Manager.ID == "":
		missing = "manager"
	case s.TotalTasks == 0:
		missing = "totalTasks"
	case s.Tasks == nil:
		missing = "tasks"
	case s.DeviceID == "":
		missing = "deviceId"
	}
	if missing != "" {
		return &StepError{
			Message:    fmt.Sprintf("snapshot missing required field %q", missing),
			StatusCode: 400,
			Retryable:  false,
		}
	}
	return nil
}

// SheetsClient is the spreadsheet side of the external mirror. AppendRow
// must be idempotent on submissionID: a retried call for an already-written
// row returns the existing row id instead of appending a duplicate.
type SheetsClient interface {
	AppendRow(ctx context.Context, submissionID string, snap SubmissionSnapshot) (rowID string, err error)
	UpdateRowLink(ctx context.Context, rowID, pdfURL string) error
}

// DriveClient is the document store side of the external mirror.
type DriveClient interface {
	Upload(ctx context.Context, name string, data []byte) (fileID, fileURL string, err error)
}
