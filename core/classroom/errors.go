package classroom

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnauthenticated is returned before any other check when no identity is present.
	ErrUnauthenticated = errors.New("user not authenticated")

	// ErrForbidden is returned when the operation's authorization expression evaluates false.
	ErrForbidden = errors.New("permission denied")

	// ErrNotFound is returned when hierarchy resolution reaches no course,
	// or a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAmbiguousHierarchy is returned when the supplied ancestor ids reach more
	// than one distinct course. Reported to callers as a routine denial but logged
	// as a data-integrity anomaly.
	ErrAmbiguousHierarchy = errors.New("ambiguous hierarchy")

	// ErrConflict is returned when a uniqueness constraint is violated by a
	// concurrent create (one Solution per homework+student, one Mark per Solution).
	ErrConflict = errors.New("conflict")
)

// OperationNotAllowedError flags a structurally disallowed action.
type OperationNotAllowedError struct {
	Reason string
}

func (e *OperationNotAllowedError) Error() string { return e.Reason }

var ErrTeacherRemoval = &OperationNotAllowedError{Reason: "You can't delete Teacher"}

// InvalidPayloadError flags request data the engine cannot act on.
type InvalidPayloadError struct {
	Reason string
}

func (e *InvalidPayloadError) Error() string { return e.Reason }

var ErrIncorrectMemberData = &InvalidPayloadError{Reason: "Incorrect data"}

// InvalidHierarchyError flags a create whose payload/path parent does not belong
// to the course identified in the path. Raised before anything is persisted.
type InvalidHierarchyError struct {
	Reason string
}

func (e *InvalidHierarchyError) Error() string { return e.Reason }

func newHierarchyMismatch(kind string, id, courseID int) *InvalidHierarchyError {
	return &InvalidHierarchyError{
		Reason: fmt.Sprintf("%s %d does not belong to course %d", kind, id, courseID),
	}
}
