package models

import "fmt"

// ValidationError reports the specific malformed input field. Handlers map
// it to 400 with the field name attached.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
