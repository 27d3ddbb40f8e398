package vschallan

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration      = errors.New("configuration error")
	ErrAuthentication     = errors.New("authentication error")
	ErrRequest            = errors.New("request error")
	ErrUnknownFormat      = errors.New("unknown response format")
	ErrValidation         = errors.New("validation error")
	ErrRegistration       = errors.New("registration error")
	ErrUnexpectedResponse = errors.New("unexpected response")
	ErrDownload           = errors.New("download error")
	ErrInvalidTransition  = errors.New("invalid status transition")
)

// Error carries the failing operation and matches both its Kind and the
// wrapped cause with errors.Is.
type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func newError(kind error, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

const maxErrorBodyRunes = 256

// HTTPError is a non-2xx answer from the authority.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if runes := []rune(body); len(runes) > maxErrorBodyRunes {
		body = string(runes[:maxErrorBodyRunes]) + "..."
	}
	if body == "" {
		return fmt.Sprintf("vat api error %d", e.StatusCode)
	}
	return fmt.Sprintf("vat api error %d: %s", e.StatusCode, body)
}

// StatusCode returns the remote HTTP status wrapped in err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
