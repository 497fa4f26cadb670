package apierr

import (
	"errors"
	"fmt"
	"net/http"

	domainagg "github.com/yungbote/attendance-backend/internal/domain/aggregates"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error {
	return New(http.StatusBadRequest, code, err)
}

// From classifies err into an HTTP status using the aggregate error code it carries.
// An *Error already in the chain wins.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	code := domainagg.CodeOf(err)
	switch code {
	case domainagg.CodeValidation:
		return New(http.StatusBadRequest, string(code), err)
	case domainagg.CodeNotFound:
		return New(http.StatusNotFound, string(code), err)
	case domainagg.CodeConflict, domainagg.CodePreconditionFailed, domainagg.CodeInvariantViolation:
		return New(http.StatusConflict, string(code), err)
	case domainagg.CodeRetryable:
		return New(http.StatusServiceUnavailable, string(code), err)
	default:
		return New(http.StatusInternalServerError, string(domainagg.CodeInternal), err)
	}
}
