// Package ident validates the opaque identifiers used for users, sellers,
// products and orders.
package ident

import (
	"fmt"

	"github.com/google/uuid"
)

// InvalidError reports a syntactically malformed identifier.
type InvalidError struct {
	Field string
	ID    string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid %s id %q", e.Field, e.ID)
}

// Check returns an *InvalidError when id is not a canonical UUID.
func Check(field, id string) error {
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return &InvalidError{Field: field, ID: id}
	}
	return nil
}

// New returns a fresh identifier.
func New() string {
	return uuid.New().String()
}
