package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds shared across the client and the functions.
var (
	ErrValidation   = errors.New("validation failed")
	ErrBackend      = errors.New("backend request failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("service temporarily unavailable")
)

// BackendError is a failure reported by one of the hosted collaborators
// (auth, storage, table, functions). Message is the collaborator's own text.
type BackendError struct {
	Op      string
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *BackendError) Unwrap() error { return ErrBackend }

// Backend builds a BackendError for op.
func Backend(op string, status int, message string) error {
	return &BackendError{Op: op, Status: status, Message: message}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return ErrValidation }

// Validation reports input rejected before any network call.
func Validation(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// Wrap preserves the kind of err while adding operation context.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

func Is(err, kind error) bool {
	return errors.Is(err, kind)
}

// Message returns the human-readable part of err suitable for a notice.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var be *BackendError
	if errors.As(err, &be) && strings.TrimSpace(be.Message) != "" {
		return be.Message
	}
	var ve *validationError
	if errors.As(err, &ve) {
		return ve.msg
	}
	return err.Error()
}
