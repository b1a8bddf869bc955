package resource

import (
	"errors"
	"fmt"
)

// ValidationKind categorizes a permission validation failure. Handlers
// switch on it exhaustively instead of inspecting error messages.
type ValidationKind string

const (
	// ValidationDuplicateEntity marks a permission set listing the same
	// principal more than once.
	ValidationDuplicateEntity ValidationKind = "duplicate_entity"

	// ValidationGuestPrivilege marks a grant for a guest user or the
	// guest group.
	ValidationGuestPrivilege ValidationKind = "guest_privilege"

	// ValidationInvalidPrivilege marks a grant with a missing or NONE
	// privilege.
	ValidationInvalidPrivilege ValidationKind = "invalid_privilege"

	// ValidationMissingDelegate marks a set containing ask-to-book grants
	// but no delegate to approve them.
	ValidationMissingDelegate ValidationKind = "missing_delegate"

	// ValidationSimpleModeCombination marks a set whose shape is not
	// allowed while simple permission mode is enabled.
	ValidationSimpleModeCombination ValidationKind = "simple_mode_combination"
)

// ValidationError reports an invalid permission set. The message names the
// offending entity/privilege combination so administrative UIs can
// highlight the exact grant; it is surfaced to callers unmodified.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid resource permissions (%s): %s", e.Kind, e.Message)
}

func validationErrorf(kind ValidationKind, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports that a resource, group or user does not exist.
type NotFoundError struct {
	Kind      string // "resource", "resource group", "group" or "user"
	ID        int
	ContextID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found in context %d", e.Kind, e.ID, e.ContextID)
}

// ConflictError reports that a lookup by unique identifier impossibly
// matched more than one row. It indicates a broken schema, not bad input.
type ConflictError struct {
	Kind      string
	ID        int
	ContextID int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %d matched multiple rows in context %d", e.Kind, e.ID, e.ContextID)
}

// StorageError wraps a failure of the relational backend. It is not
// retryable at this layer; retries are a transaction-management concern of
// the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorage wraps err as a StorageError for the given operation.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
