package staff

import "time"

type CreateStaffRequest struct {
	Name string `json:"name" binding:"required,min=2,max=60"`
	Role string `json:"role" binding:"required,oneof=staff manager"`
}

type UpdateStaffRequest struct {
	Name string `json:"name" binding:"required,min=2,max=60"`
}

type StaffResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Role          string  `json:"role"`
	Active        bool    `json:"active"`
	HasPIN        bool    `json:"has_pin"`
	CreatedAt     string  `json:"created_at"`
	DeactivatedAt *string `json:"deactivated_at,omitempty"`
}

func mapToResponse(s Staff) StaffResponse {
	resp := StaffResponse{
		ID:        s.ID,
		Name:      s.Name,
		Role:      string(s.Role),
		Active:    s.Active,
		HasPIN:    s.HasPIN(),
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
	if s.DeactivatedAt != nil {
		v := s.DeactivatedAt.Format(time.RFC3339)
		resp.DeactivatedAt = &v
	}
	return resp
}
