package session

import (
	"net/http"

	"shiftcheck/internal/shared/apperror"
	"shiftcheck/internal/shared/response"
	"shiftcheck/internal/staff"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func (h *Handler) Start(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeServiceError(c, apperror.MapValidationError(err))
		return
	}

	resp, err := h.service.Start(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, resp, nil)
}

func (h *Handler) CheckActive(c *gin.Context) {
	templateID := c.Query("template_id")
	if templateID == "" {
		writeServiceError(c, apperror.RequiredField("template_id"))
		return
	}

	active, err := h.service.CheckActive(c.Request.Context(), templateID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	// No active session is a normal answer, not a 404.
	response.Success(c, http.StatusOK, gin.H{"active": active}, nil)
}

func (h *Handler) Resume(c *gin.Context) {
	resp, err := h.service.Resume(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) Get(c *gin.Context) {
	resp, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) UpdateTask(c *gin.Context) {
	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeServiceError(c, apperror.MapValidationError(err))
		return
	}

	resp, err := h.service.UpdateTask(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) SubmitForReview(c *gin.Context) {
	resp, err := h.service.SubmitForReview(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) Approve(c *gin.Context) {
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeServiceError(c, apperror.MapValidationError(err))
		return
	}

	resp, err := h.service.Approve(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

// ForceClose trusts the manager identity from the verified token, not from
// the request body.
func (h *Handler) ForceClose(c *gin.Context) {
	var req ForceCloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeServiceError(c, apperror.MapValidationError(err))
		return
	}

	manager := staff.Ref{
		ID:   c.GetString("manager_id"),
		Name: c.GetString("manager_name"),
		Role: "manager",
	}

	resp, err := h.service.ForceClose(c.Request.Context(), c.Param("id"), manager, req.Reason)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}
