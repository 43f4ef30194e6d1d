package model

import (
	"errors"
	"fmt"
)

// The closed set of error kinds crossing component boundaries. Every core
// operation returns one of these (or wraps one); callers match with
// errors.As / errors.Is so each kind is handled explicitly.

// DoesNotExistError reports that a requested entity is absent or not owned
// by the acting user. The two cases are deliberately indistinguishable so
// unowned ids never leak existence.
type DoesNotExistError struct {
	Entity string
}

func (e *DoesNotExistError) Error() string {
	if e.Entity == "" {
		return "does not exist"
	}
	return fmt.Sprintf("%s does not exist", e.Entity)
}

// DuplicateNameError reports a unique-name collision within one owner's
// namespace.
type DuplicateNameError struct {
	Entity string
	Name   string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s named %q already exists", e.Entity, e.Name)
}

// InvalidEventStatusError reports a status value incompatible with the
// event's fixed type.
type InvalidEventStatusError struct {
	EventType string
	Status    string
}

func (e *InvalidEventStatusError) Error() string {
	return fmt.Sprintf("status %q is not valid for a %s", e.Status, e.EventType)
}

// AssertionError reports a broken internal invariant, for example an
// ownership query returning more rows than ids requested. It signals a bug,
// never user input, and must stay distinct from the user-caused kinds so
// callers do not mis-attribute blame.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return "assertion failed: " + e.Message
}

// FieldIssue is one per-field complaint from input validation.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports rejected input. Nothing is applied when it is
// returned.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%d issues)", len(e.Issues))
}

// IsDoesNotExist reports whether err is (or wraps) a DoesNotExistError.
func IsDoesNotExist(err error) bool {
	var target *DoesNotExistError
	return errors.As(err, &target)
}

// IsDuplicateName reports whether err is (or wraps) a DuplicateNameError.
func IsDuplicateName(err error) bool {
	var target *DuplicateNameError
	return errors.As(err, &target)
}

// IsAssertion reports whether err is (or wraps) an AssertionError.
func IsAssertion(err error) bool {
	var target *AssertionError
	return errors.As(err, &target)
}
