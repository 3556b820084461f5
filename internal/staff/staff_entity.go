package staff

import "time"

type Role string

const (
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
)

func (r Role) Valid() bool {
	return r == RoleStaff || r == RoleManager
}

// ManagerCredentials only carry data on manager rows. Staff rows keep the
// zero values; the service layer never reads them for non-managers.
type ManagerCredentials struct {
	PINHash        string     `gorm:"column:pin_hash" json:"-"`
	FailedAttempts int        `gorm:"column:failed_attempts;not null;default:0" json:"-"`
	LockedUntil    *time.Time `gorm:"column:locked_until" json:"-"`
}

type Staff struct {
	ID            string     `gorm:"column:id;primaryKey" json:"id"`
	Name          string     `gorm:"column:name;not null;index" json:"name"`
	Role          Role       `gorm:"column:role;type:varchar(10);not null;index" json:"role"`
	Active        bool       `gorm:"column:active;not null;default:true;index" json:"active"`
	CreatedAt     time.Time  `gorm:"column:created_at;index" json:"created_at"`
	DeactivatedAt *time.Time `gorm:"column:deactivated_at" json:"deactivated_at,omitempty"`
	ManagerCredentials
}

func (Staff) TableName() string {
	return "staff"
}

func (s *Staff) IsManager() bool {
	return s.Role == RoleManager
}

func (s *Staff) HasPIN() bool {
	return s.PINHash != ""
}

// Ref is the denormalized staff snapshot embedded in checklists, task
// completions and submissions. It survives staff deactivation.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func (s *Staff) Ref() Ref {
	return Ref{ID: s.ID, Name: s.Name, Role: string(s.Role)}
}
