package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an error for retry and reporting decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindResourceNotFound
	KindDecodeFailure
	KindValidation
	KindStoreNotConfigured
	KindTransientRemote
	KindPermanentRemote
	KindRunInProgress
)

func (k Kind) String() string {
	switch k {
	case KindResourceNotFound:
		return "resource_not_found"
	case KindDecodeFailure:
		return "decode_failure"
	case KindValidation:
		return "validation"
	case KindStoreNotConfigured:
		return "store_not_configured"
	case KindTransientRemote:
		return "transient_remote"
	case KindPermanentRemote:
		return "permanent_remote"
	case KindRunInProgress:
		return "run_in_progress"
	default:
		return "unknown"
	}
}

// Error represents an application error
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind and code, ignoring message and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(kind Kind, code int, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap returns a copy of the sentinel carrying err as its cause.
func Wrap(sentinel *Error, err error) *Error {
	return New(sentinel.Kind, sentinel.Code, sentinel.Message, err)
}

// Wrapf returns a copy of the sentinel with a formatted message and cause.
func Wrapf(sentinel *Error, err error, format string, args ...interface{}) *Error {
	return New(sentinel.Kind, sentinel.Code, fmt.Sprintf(format, args...), err)
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Seeding error types
var (
	ErrResourceNotFound   = New(KindResourceNotFound, http.StatusNotFound, "Seed resource not found", nil)
	ErrDecodeFailure      = New(KindDecodeFailure, http.StatusUnprocessableEntity, "Seed resource could not be decoded", nil)
	ErrValidation         = New(KindValidation, http.StatusBadRequest, "Validation error", nil)
	ErrStoreNotConfigured = New(KindStoreNotConfigured, http.StatusServiceUnavailable, "Remote store not configured", nil)
	ErrRunInProgress      = New(KindRunInProgress, http.StatusConflict, "Seed run already in progress", nil)
)

// Remote store error types
var (
	ErrTransientRemote = New(KindTransientRemote, http.StatusServiceUnavailable, "Transient remote store failure", nil)
	ErrPermanentRemote = New(KindPermanentRemote, http.StatusBadGateway, "Remote store failure", nil)
)

// Common error types
var (
	ErrBadRequest     = New(KindValidation, http.StatusBadRequest, "Bad request", nil)
	ErrUnauthorized   = New(KindUnknown, http.StatusUnauthorized, "Unauthorized", nil)
	ErrForbidden      = New(KindUnknown, http.StatusForbidden, "Forbidden", nil)
	ErrInternalServer = New(KindUnknown, http.StatusInternalServerError, "Internal server error", nil)
)

// toAppError never mutates the shared sentinels.
func toAppError(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(ErrInternalServer, err)
}

// HandleError writes err as a JSON response.
func HandleError(w http.ResponseWriter, err error) {
	appErr := toAppError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Code)
	_, _ = w.Write([]byte(appErr.JSON()))
}

// Error middleware for Gin
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			appErr := toAppError(c.Errors.Last().Err)
			c.JSON(appErr.Code, gin.H{
				"kind":    appErr.Kind.String(),
				"message": appErr.Message,
				"error":   appErr.Error(),
			})
			c.Abort()
		}
	}
}
