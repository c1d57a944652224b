package scanerrors

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoTabContext is returned for tab-scoped messages that arrive without
// an addressable originating tab.
var ErrNoTabContext = errors.New("No tab context")

// UnreachableMessage is the summary shown when the service cannot be reached.
const UnreachableMessage = "Unable to reach the Can I Click It? service. Check your connection and try again."

// APIError is any failure talking to the remote scan service. Status 0
// means the request never got a response.
type APIError struct {
	Status  int
	Detail  string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("Request failed (%d)", e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// Transport reports whether the error is a transport failure rather than
// a service-reported one.
func (e *APIError) Transport() bool { return e.Status == 0 }

// Unreachable wraps a transport failure.
func Unreachable(err error) *APIError {
	return &APIError{Message: UnreachableMessage, Err: err}
}

// FromStatus builds a service-reported error. detail may be empty.
func FromStatus(status int, detail string) *APIError {
	msg := detail
	if msg == "" {
		msg = fmt.Sprintf("Request failed (%d)", status)
	}
	return &APIError{Status: status, Detail: detail, Message: msg}
}

// Summary is the user-facing text for err, used as the fallback summary.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return UnreachableMessage
	}
	return err.Error()
}
