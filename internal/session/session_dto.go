package session

import (
	"time"

	"shiftcheck/internal/staff"
)

type StartSessionRequest struct {
	TemplateID   string   `json:"template_id" binding:"required"`
	TemplateName string   `json:"template_name" binding:"required"`
	DutyType     string   `json:"duty_type" binding:"required,oneof=Opening Closing"`
	TaskIDs      []string `json:"task_ids" binding:"required,min=1"`
	StaffID      string   `json:"staff_id" binding:"required"`
}

type UpdateTaskRequest struct {
	TaskID          string `json:"task_id" binding:"required"`
	Status          string `json:"status" binding:"required,oneof=done not_done na"`
	StaffID         string `json:"staff_id" binding:"required"`
	Note            string `json:"note"`
	InputValue      string `json:"input_value"`
	ManagerOverride bool   `json:"manager_override"`
}

type ApproveRequest struct {
	ManagerID  string `json:"manager_id" binding:"required"`
	PIN        string `json:"pin" binding:"required"`
	ShiftNotes string `json:"shift_notes"`
}

type ForceCloseRequest struct {
	Reason string `json:"reason" binding:"required,min=3"`
}

// ActiveSession is the lightweight snapshot returned by the cross-device
// conflict check. IsOwnDevice tells the caller whether resuming locally is
// an option or a manager force-close is needed first.
type ActiveSession struct {
	ChecklistID    string    `json:"checklist_id"`
	TemplateID     string    `json:"template_id"`
	Status         Status    `json:"status"`
	StartedBy      staff.Ref `json:"started_by"`
	StartedAt      time.Time `json:"started_at"`
	LastModifiedAt time.Time `json:"last_modified_at"`
	DeviceID       string    `json:"device_id"`
	IsOwnDevice    bool      `json:"is_own_device"`
}
