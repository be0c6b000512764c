package routes

import (
	"errors"
	"net/http"

	"informatik-booking/internal/google"
	"informatik-booking/internal/jwt"
	"informatik-booking/internal/storage"
)

// HTTPError represents an error with an associated HTTP status code and user message
type HTTPError struct {
	Err        error    // The underlying error
	StatusCode int      // HTTP status code
	Message    string   // User-friendly message
	StopCodes  []string // Optional stop codes for client-side handling
	Internal   bool     // Whether this is an internal error (hide details from user)
}

// ErrorInfo contains error metadata for user-facing errors
type ErrorInfo struct {
	Message   string   // User-friendly message
	StopCodes []string // Optional stop codes for client-side application
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, err error, message string, stopCodes ...string) *HTTPError {
	return &HTTPError{
		Err:        err,
		StatusCode: statusCode,
		Message:    message,
		StopCodes:  stopCodes,
		Internal:   statusCode >= 500,
	}
}

const adminRequiredMessage = "Unauthorized: Admin access required"

// Routes-specific errors (that don't conflict with other packages)
var (
	// Authentication errors
	ErrUnauthorized = errors.New("unauthorized")

	// Authorization errors
	ErrForbidden               = errors.New("forbidden")
	ErrInsufficientPermissions = errors.New("insufficient permissions")

	// Validation errors
	ErrInvalidRequest      = errors.New("invalid request")
	ErrMissingParameter    = errors.New("missing required parameter")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrInvalidCalendarData = errors.New("invalid calendar data")
	ErrInvalidState        = errors.New("invalid oauth state")

	// Upstream errors
	ErrCalendarProvider = errors.New("calendar provider error")
	ErrTokenProvider    = errors.New("token provider error")

	// Internal errors
	ErrInternalServer     = errors.New("internal server error")
	ErrServiceUnavailable = errors.New("service unavailable")

	// Storage provider errors
	ErrStorageProviderNotFound = errors.New("storage provider not found")
	ErrInvalidStorageProvider  = errors.New("invalid storage provider")
)

// errorStatusMap maps errors to HTTP status codes
var errorStatusMap = map[error]int{
	// 400 Bad Request
	ErrInvalidRequest:             http.StatusBadRequest,
	ErrMissingParameter:           http.StatusBadRequest,
	ErrInvalidParameter:           http.StatusBadRequest,
	ErrInvalidCalendarData:        http.StatusBadRequest,
	ErrInvalidState:               http.StatusBadRequest,
	google.ErrMissingAccessToken:  http.StatusBadRequest,
	google.ErrMissingCode:         http.StatusBadRequest,
	google.ErrMissingRefreshToken: http.StatusBadRequest,
	google.ErrNoAccessToken:       http.StatusBadRequest,

	// 401 Unauthorized
	ErrUnauthorized:        http.StatusUnauthorized,
	jwt.ErrNonValidToken:   http.StatusUnauthorized,
	jwt.ErrMissingIdentity: http.StatusUnauthorized,

	// 403 Forbidden
	ErrForbidden:               http.StatusForbidden,
	ErrInsufficientPermissions: http.StatusForbidden,

	// 404 Not Found
	storage.ErrSlotNotFound: http.StatusNotFound,

	// 500 Internal Server Error
	ErrInternalServer:          http.StatusInternalServerError,
	ErrCalendarProvider:        http.StatusInternalServerError,
	ErrTokenProvider:           http.StatusInternalServerError,
	ErrStorageProviderNotFound: http.StatusInternalServerError,
	ErrInvalidStorageProvider:  http.StatusInternalServerError,
	jwt.ErrMissingSecret:       http.StatusInternalServerError,

	// 503 Service Unavailable
	ErrServiceUnavailable: http.StatusServiceUnavailable,
}

// errorInfoMap maps errors to user-friendly messages and optional stop codes
var errorInfoMap = map[error]ErrorInfo{
	// Authentication
	ErrUnauthorized: {
		Message:   "Authentication required",
		StopCodes: []string{"AUTH_REQUIRED"},
	},
	jwt.ErrNonValidToken: {
		Message:   "Invalid or expired authentication token",
		StopCodes: []string{"AUTH_INVALID_TOKEN"},
	},
	jwt.ErrMissingIdentity: {
		Message:   "Authentication token carries no identity",
		StopCodes: []string{"AUTH_INVALID_TOKEN"},
	},

	// Authorization
	ErrForbidden: {
		Message:   adminRequiredMessage,
		StopCodes: []string{"FORBIDDEN"},
	},
	ErrInsufficientPermissions: {
		Message:   adminRequiredMessage,
		StopCodes: []string{"INSUFFICIENT_PERMISSIONS"},
	},

	// Validation
	ErrInvalidRequest: {
		Message:   "Invalid request format",
		StopCodes: []string{"INVALID_REQUEST"},
	},
	ErrMissingParameter: {
		Message:   "Required parameter is missing",
		StopCodes: []string{"MISSING_PARAMETER"},
	},
	ErrInvalidParameter: {
		Message:   "Invalid parameter value",
		StopCodes: []string{"INVALID_PARAMETER"},
	},
	ErrInvalidCalendarData: {
		Message:   "Invalid calendar data format",
		StopCodes: []string{"INVALID_CALENDAR_DATA"},
	},
	ErrInvalidState: {
		Message:   "Invalid or expired state parameter",
		StopCodes: []string{"INVALID_STATE"},
	},
	google.ErrMissingAccessToken: {
		Message:   "Access token required",
		StopCodes: []string{"ACCESS_TOKEN_REQUIRED"},
	},
	google.ErrMissingCode: {
		Message:   "Authorization code required",
		StopCodes: []string{"CODE_REQUIRED"},
	},
	google.ErrMissingRefreshToken: {
		Message:   "Refresh token required",
		StopCodes: []string{"REFRESH_TOKEN_REQUIRED"},
	},
	google.ErrNoAccessToken: {
		Message:   "Failed to obtain access token",
		StopCodes: []string{"NO_ACCESS_TOKEN"},
	},

	// Not found
	storage.ErrSlotNotFound: {
		Message:   "Slot not found",
		StopCodes: []string{"SLOT_NOT_FOUND"},
	},

	// Internal (no stop codes for internal errors)
	ErrInternalServer: {
		Message: "An internal error occurred",
	},
	ErrStorageProviderNotFound: {
		Message: "Storage service is not available",
	},
	ErrInvalidStorageProvider: {
		Message: "Storage service configuration error",
	},
	ErrServiceUnavailable: {
		Message: "Service is temporarily unavailable",
	},
}

// GetErrorStatus returns the HTTP status code for an error
func GetErrorStatus(err error) int {
	// Check if it's already an HTTPError
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}

	// Check direct match
	if status, ok := errorStatusMap[err]; ok {
		return status
	}

	// Check if error wraps a known error
	for knownErr, status := range errorStatusMap {
		if errors.Is(err, knownErr) {
			return status
		}
	}

	// Default to 500 Internal Server Error
	return http.StatusInternalServerError
}

// GetErrorInfo returns error information including message and stop codes
func GetErrorInfo(err error) ErrorInfo {
	// Check if it's an HTTPError with custom info
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return ErrorInfo{
			Message:   httpErr.Message,
			StopCodes: httpErr.StopCodes,
		}
	}

	// Check direct match
	if info, ok := errorInfoMap[err]; ok {
		return info
	}

	// Check if error wraps a known error
	for knownErr, info := range errorInfoMap {
		if errors.Is(err, knownErr) {
			return info
		}
	}

	// For unknown errors, return a generic message for 5xx, specific for others
	status := GetErrorStatus(err)
	if status >= 500 {
		return ErrorInfo{Message: "An internal error occurred"}
	}
	return ErrorInfo{Message: err.Error()}
}

// GetErrorMessage returns a user-friendly message for an error
func GetErrorMessage(err error) string {
	return GetErrorInfo(err).Message
}
