package pinauth

import (
	"net/http"

	"shiftcheck/internal/shared/apperror"
	"shiftcheck/internal/shared/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func bindError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(apperror.MapValidationError(err))
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

// writeOutcome maps the service outcome codes onto the HTTP error taxonomy.
func writeOutcome(c *gin.Context, res VerifyResult) {
	switch res.ErrorCode {
	case OutcomeInvalidPIN:
		response.Error(c, http.StatusUnauthorized, apperror.CodeInvalidPIN, "Incorrect PIN", gin.H{
			"attempts_remaining": res.AttemptsRemaining,
		})
	case OutcomeAccountLocked:
		response.Error(c, http.StatusLocked, apperror.CodeAccountLocked, "Account is locked", gin.H{
			"lockout_remaining": res.LockoutRemaining,
		})
	case OutcomeNotFound:
		response.Error(c, http.StatusNotFound, apperror.CodeNotFound, "Manager not found", nil)
	case OutcomeInvalidFormat:
		response.Error(c, http.StatusBadRequest, apperror.CodeInvalidPINFormat, "PIN must be exactly 4 digits", nil)
	case OutcomePINExists:
		response.Error(c, http.StatusConflict, apperror.CodeConflict, "A PIN is already set for this manager", nil)
	case OutcomePINNotSet:
		response.Error(c, http.StatusConflict, apperror.CodeConflict, "No PIN has been set for this manager", nil)
	default:
		response.Error(c, http.StatusInternalServerError, apperror.CodeInternalError, "Verification failed", nil)
	}
}

func (h *Handler) Setup(c *gin.Context) {
	var req SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.service.Setup(c.Request.Context(), req.ManagerID, req.PIN)
	if err != nil {
		httpErr := apperror.ToHTTP(err)
		response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
		return
	}
	if !res.Success {
		writeOutcome(c, res)
		return
	}
	response.Success(c, http.StatusOK, VerifyResponse{Success: true, ManagerName: res.ManagerName}, nil)
}

func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.service.Verify(c.Request.Context(), req.ManagerID, req.PIN)
	if err != nil {
		httpErr := apperror.ToHTTP(err)
		response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
		return
	}
	if !res.Success {
		writeOutcome(c, res)
		return
	}
	response.Success(c, http.StatusOK, VerifyResponse{
		Success:     true,
		Token:       res.Token,
		ManagerName: res.ManagerName,
	}, nil)
}

func (h *Handler) Change(c *gin.Context) {
	var req ChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.service.Change(c.Request.Context(), req.ManagerID, req.CurrentPIN, req.NewPIN)
	if err != nil {
		httpErr := apperror.ToHTTP(err)
		response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
		return
	}
	if !res.Success {
		writeOutcome(c, res)
		return
	}
	response.Success(c, http.StatusOK, VerifyResponse{Success: true, ManagerName: res.ManagerName}, nil)
}
