package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrCrossCommunity is returned when a rating would be linked to a vendor of
// another community without the explicit override.
var ErrCrossCommunity = errors.New("reconcile: vendor belongs to another community")

// ValidationError reports input rejected before any store call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("reconcile: invalid %s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GroupError records one failed group of a batch.
type GroupError struct {
	SurveyVendorName string   `json:"survey_vendor_name"`
	Category         string   `json:"category"`
	RatingIDs        []string `json:"rating_ids"`
	Err              error    `json:"-"`
	Message          string   `json:"error"`
}

// BatchResult aggregates a bulk approval. Failures never undo successes.
type BatchResult struct {
	Attempted int          `json:"attempted"`
	Succeeded int          `json:"succeeded"`
	Skipped   int          `json:"skipped"`
	Linked    int64        `json:"linked"`
	Failures  []GroupError `json:"failures,omitempty"`
}

// Failed returns the number of failed groups.
func (b *BatchResult) Failed() int {
	return len(b.Failures)
}

// Err summarizes the failures, or returns nil when every group succeeded.
func (b *BatchResult) Err() error {
	if len(b.Failures) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(b.Failures))
	for _, f := range b.Failures {
		msgs = append(msgs, fmt.Sprintf("%s (%s): %s", f.SurveyVendorName, f.Category, f.Message))
	}
	return eris.Errorf("reconcile: %d of %d groups failed: %s", len(b.Failures), b.Attempted, strings.Join(msgs, "; "))
}
