package authapi

import (
	"errors"
	"fmt"
)

// Kind classifies Auth API failures.
type Kind string

const (
	KindNetwork            Kind = "network_failure"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindServer             Kind = "server_error"
	KindRejected           Kind = "rejected"
)

var (
	ErrNetworkFailure     = errors.New("auth api unreachable")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrServerError        = errors.New("auth api server error")
	ErrRejected           = errors.New("auth api rejected the request")
)

// Error is returned by every Client call that fails.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("authapi.%s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("authapi.%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("authapi.%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetworkFailure:
		return e.Kind == KindNetwork
	case ErrInvalidCredentials:
		return e.Kind == KindInvalidCredentials
	case ErrServerError:
		return e.Kind == KindServer
	case ErrRejected:
		return e.Kind == KindRejected
	}
	return false
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, code int) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == code
	}
	return false
}
