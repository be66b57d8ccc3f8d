package exam

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by the repository when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// PhaseError reports an operation attempted while the exam is not in the
// phase the operation requires. It is always recoverable: the dispatcher
// surfaces the message to the caller and no state changes.
type PhaseError struct {
	message string
}

func NewPhaseError(format string, args ...interface{}) error {
	return &PhaseError{message: fmt.Sprintf(format, args...)}
}

func (e PhaseError) Error() string { return e.message }

// NotFoundError reports a lookup that matched no row where absence is a
// valid, user-facing outcome (unknown user, unassigned question, ...).
type NotFoundError struct {
	message string
}

func NewNotFoundError(format string, args ...interface{}) error {
	return &NotFoundError{message: fmt.Sprintf(format, args...)}
}

func (e NotFoundError) Error() string { return e.message }

// IntegrityError reports a row missing where the data model guarantees its
// presence (e.g. a just-created assignment). It is fatal to the current
// operation and must be logged with full context, never swallowed.
type IntegrityError struct {
	message string
}

func NewIntegrityError(format string, args ...interface{}) error {
	return &IntegrityError{message: fmt.Sprintf(format, args...)}
}

func (e IntegrityError) Error() string { return e.message }
