package pinauth

type SetupRequest struct {
	ManagerID string `json:"manager_id" binding:"required"`
	PIN       string `json:"pin" binding:"required"`
}

type VerifyRequest struct {
	ManagerID string `json:"manager_id" binding:"required"`
	PIN       string `json:"pin" binding:"required"`
}

type ChangeRequest struct {
	ManagerID  string `json:"manager_id" binding:"required"`
	CurrentPIN string `json:"current_pin" binding:"required"`
	NewPIN     string `json:"new_pin" binding:"required"`
}

type VerifyResponse struct {
	Success           bool   `json:"success"`
	Token             string `json:"token,omitempty"`
	ManagerName       string `json:"manager_name,omitempty"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
	LockoutRemaining  *int   `json:"lockout_remaining,omitempty"`
}
