package letter

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across the store, service, and HTTP layers. Callers
// test them with errors.Is; lower-level causes are wrapped with %w.
var (
	// ErrNotFound means the referenced letter id does not exist.
	ErrNotFound = errors.New("letter not found")
	// ErrAlreadySent means the requested mutation is forbidden because the
	// stored letter has Sent status.
	ErrAlreadySent = errors.New("letter already sent")
	// ErrInvalidTag means a search parameter key is not in the tag catalog.
	ErrInvalidTag = errors.New("invalid search parameter key")
	// ErrDispatchRejected means send-level recipient validation failed
	// before any delivery attempt was made.
	ErrDispatchRejected = errors.New("dispatch rejected")
)

// FieldError is one field-level validation failure. Errors accumulate in
// request order and are returned together.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationError carries the full ordered list of field errors for a
// rejected request. It never reaches storage.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

// NewValidationError wraps a non-empty field error list.
func NewValidationError(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}

// AsValidationError unwraps a *ValidationError if err carries one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// PersistenceError wraps a storage failure. The enclosing unit of work has
// been rolled back by the time it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError for the named operation.
func Persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
