package audit

import "time"

// Audit actions recorded by the app. The log is append-only; entries are
// never updated or deleted.
const (
	ActionChecklistStarted   = "checklist_started"
	ActionTaskUpdated        = "task_updated"
	ActionChecklistSubmitted = "checklist_submitted"
	ActionChecklistApproved  = "checklist_approved"
	ActionSessionForceClosed = "session_force_closed"
	ActionStaffCreated       = "staff_created"
	ActionStaffUpdated       = "staff_updated"
	ActionStaffDeactivated   = "staff_deactivated"
	ActionPINSetup           = "pin_setup"
	ActionPINChanged         = "pin_changed"
	ActionSyncRetried        = "sync_retried"
	ActionSettingsUpdated    = "settings_updated"
	ActionServerShutdown     = "server_shutdown"
)

type Entry struct {
	ID          string         `gorm:"column:id;primaryKey" json:"id"`
	Action      string         `gorm:"column:action;not null;index;index:idx_audit_action_time,priority:1" json:"action"`
	EntityID    string         `gorm:"column:entity_id;index" json:"entity_id"`
	EntityType  string         `gorm:"column:entity_type" json:"entity_type"`
	PerformedBy string         `gorm:"column:performed_by" json:"performed_by,omitempty"`
	Details     map[string]any `gorm:"column:details;type:text;serializer:json" json:"details,omitempty"`
	Timestamp   time.Time      `gorm:"column:timestamp;not null;index;index:idx_audit_action_time,priority:2" json:"timestamp"`
	DeviceID    string         `gorm:"column:device_id" json:"device_id"`
}

func (Entry) TableName() string {
	return "audit_logs"
}
