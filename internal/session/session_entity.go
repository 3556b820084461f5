package session

import (
	"math"
	"time"

	"shiftcheck/internal/staff"
)

type Status string

const (
	StatusInProgress    Status = "in_progress"
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusSynced        Status = "synced"
	StatusSyncFailed    Status = "sync_failed"
	StatusForceClosed   Status = "force_closed"
)

// Active statuses are the ones the cross-device conflict check looks for.
func (s Status) Active() bool {
	return s == StatusInProgress || s == StatusPendingReview
}

func (s Status) Terminal() bool {
	return s == StatusSynced || s == StatusSyncFailed || s == StatusForceClosed
}

type TaskStatus string

const (
	TaskDone    TaskStatus = "done"
	TaskNotDone TaskStatus = "not_done"
	TaskNA      TaskStatus = "na"
)

func (t TaskStatus) Valid() bool {
	return t == TaskDone || t == TaskNotDone || t == TaskNA
}

type TaskCompletion struct {
	TaskID      string     `json:"task_id"`
	Status      TaskStatus `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy *staff.Ref `json:"completed_by,omitempty"`
	Note        string     `json:"note,omitempty"`
	InputValue  string     `json:"input_value,omitempty"`
}

type ForceCloseRecord struct {
	Manager  staff.Ref `json:"manager"`
	Reason   string    `json:"reason"`
	ClosedAt time.Time `json:"closed_at"`
}

// Checklist is one execution of a task template on a device. JSON columns
// (started_by, manager, tasks, force_closed) are marshaled by the
// repository; the gorm tags exist for schema migration.
type Checklist struct {
	ID                   string                    `gorm:"column:id;primaryKey" json:"id"`
	TemplateID           string                    `gorm:"column:template_id;not null;index" json:"template_id"`
	TemplateName         string                    `gorm:"column:template_name" json:"template_name"`
	Area                 string                    `gorm:"column:area" json:"area"`
	DutyType             string                    `gorm:"column:duty_type" json:"duty_type"`
	Status               Status                    `gorm:"column:status;type:varchar(20);not null;index;index:idx_checklists_status_device,priority:1" json:"status"`
	StartedBy            staff.Ref                 `gorm:"column:started_by;type:text;serializer:json" json:"started_by"`
	Manager              *staff.Ref                `gorm:"column:manager;type:text;serializer:json" json:"manager,omitempty"`
	DeviceID             string                    `gorm:"column:device_id;not null;index:idx_checklists_status_device,priority:2" json:"device_id"`
	Tasks                map[string]TaskCompletion `gorm:"column:tasks;type:text;serializer:json" json:"tasks"`
	DoneCount            int                       `gorm:"column:done_count;not null" json:"done_count"`
	NotDoneCount         int                       `gorm:"column:not_done_count;not null" json:"not_done_count"`
	NACount              int                       `gorm:"column:na_count;not null" json:"na_count"`
	TotalTasks           int                       `gorm:"column:total_tasks;not null" json:"total_tasks"`
	CompletionPercentage int                       `gorm:"column:completion_percentage;not null" json:"completion_percentage"`
	StartedAt            time.Time                 `gorm:"column:started_at;not null;index" json:"started_at"`
	LastModifiedAt       time.Time                 `gorm:"column:last_modified_at;not null" json:"last_modified_at"`
	SubmittedAt          *time.Time                `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	ApprovedAt           *time.Time                `gorm:"column:approved_at" json:"approved_at,omitempty"`
	SyncedAt             *time.Time                `gorm:"column:synced_at" json:"synced_at,omitempty"`
	ShiftNotes           string                    `gorm:"column:shift_notes" json:"shift_notes,omitempty"`
	ForceClosed          *ForceCloseRecord         `gorm:"column:force_closed;type:text;serializer:json" json:"force_closed,omitempty"`
}

func (Checklist) TableName() string {
	return "checklists"
}

// Recount rebuilds the counters and the percentage from the full task map.
// Counters are never adjusted incrementally; recomputing avoids drift.
func (c *Checklist) Recount() {
	done, notDone, na := 0, 0, 0
	for _, t := range c.Tasks {
		switch t.Status {
		case TaskDone:
			done++
		case TaskNA:
			na++
		default:
			notDone++
		}
	}

	c.DoneCount = done
	c.NotDoneCount = notDone
	c.NACount = na
	c.TotalTasks = len(c.Tasks)

	denom := c.TotalTasks - c.NACount
	if denom <= 0 {
		c.CompletionPercentage = 100
		return
	}
	c.CompletionPercentage = int(math.Round(float64(done) / float64(denom) * 100))
}
