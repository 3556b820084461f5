package apperror

const (
	// Client errors (4xx)
	CodeInvalidInput     = "INVALID_INPUT"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInvalidState     = "INVALID_STATE"
	CodeInvalidPIN       = "INVALID_PIN"
	CodeAccountLocked    = "ACCOUNT_LOCKED"
	CodeSessionConflict  = "SESSION_CONFLICT"
	CodeWrongDevice      = "WRONG_DEVICE"
	CodeInvalidPINFormat = "INVALID_PIN_FORMAT"
	CodeTooManyRequests  = "TOO_MANY_REQUESTS"

	// Server errors (5xx)
	CodeInternalError      = "INTERNAL_ERROR"
	CodeSyncFailed         = "SYNC_FAILED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)
