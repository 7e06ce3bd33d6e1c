package results

import (
	"errors"
	"fmt"
)

// ErrIncomplete marks a lab result event missing its sample id, value, or
// completion time. The message is skipped, not retried.
var ErrIncomplete = errors.New("incomplete lab result")

// ConflictError reports a plain (non-correction) result that contradicts an
// already accepted plain result. This is fatal to the message: an operator
// must investigate before anything is recorded or sent.
type ConflictError struct {
	SampleID    string
	Previous    string
	Incoming    string
	CompletedAt string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("result for sample %s does not match the accepted result (had %q, got %q, completed %s)",
		e.SampleID, e.Previous, e.Incoming, e.CompletedAt)
}
