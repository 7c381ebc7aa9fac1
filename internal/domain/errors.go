package domain

import "fmt"

// ValidationError marks a single malformed record. It is fatal to that
// record only: the record is logged, counted and excluded from output, and
// the run continues.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: field %s: %s", e.Field, e.Reason)
}
