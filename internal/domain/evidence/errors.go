package evidence

import (
	"errors"
	"fmt"
)

// FetchError is returned when the evidence list cannot be loaded. Callers
// show it as retryable and keep whatever list they had.
type FetchError struct {
	UserID string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch evidence for %s: %v", e.UserID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// OrphanedUploadError means the file reached storage but its row was not
// written. The blob at Path has no record.
type OrphanedUploadError struct {
	Path string
	Err  error
}

func (e *OrphanedUploadError) Error() string {
	return fmt.Sprintf("save evidence metadata for %s: %v", e.Path, e.Err)
}

func (e *OrphanedUploadError) Unwrap() error { return e.Err }

// RemoveOutcome carries the independent results of the two delete steps.
type RemoveOutcome struct {
	StorageErr error
	RecordErr  error
}

// Err joins both step errors, nil when both steps succeeded.
func (o RemoveOutcome) Err() error {
	return errors.Join(o.StorageErr, o.RecordErr)
}

// Partial reports a storage failure alongside a successful row delete.
func (o RemoveOutcome) Partial() bool {
	return o.StorageErr != nil && o.RecordErr == nil
}
