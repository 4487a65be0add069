// Package validate holds input-validation helpers shared by the API surface
// and the engine. Ids are interpolated into the vector store's where
// predicate, so rejecting anything outside the allowed charset is mandatory,
// not cosmetic.
package validate

import (
	"fmt"
	"regexp"
)

// idPattern matches the charset allowed for user_id and memory_id:
// letters, digits, underscore, dot, hyphen. Anything else (notably spaces
// and quote characters) is rejected before it ever reaches a query.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ErrInvalidID is returned when an id fails the charset check. Callers
// surface this as a client error (InvalidId in the error taxonomy).
type ErrInvalidID struct {
	Field string
	Value string
}

func (e *ErrInvalidID) Error() string {
	return fmt.Sprintf("validate: %s %q contains characters outside [A-Za-z0-9_.-]", e.Field, e.Value)
}

// ID checks value against the allowed id charset. field is used only to
// build a readable error message (e.g. "user_id", "memory_id").
func ID(field, value string) error {
	if value == "" || !idPattern.MatchString(value) {
		return &ErrInvalidID{Field: field, Value: value}
	}
	return nil
}
