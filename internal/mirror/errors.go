package mirror

import (
	"errors"
	"fmt"
)

// ErrSyncInFlight is returned when a sync is requested for a prefix that
// already has a run in progress. Concurrent runs against the same prefix
// would interleave deletes and writes unpredictably.
var ErrSyncInFlight = errors.New("sync already in flight for this prefix")

// ValidationError reports a malformed sync request. It is raised before any
// filesystem or remote store call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// TargetPrepError reports a failure to wipe or create the local target
// subtree. It is fatal to the whole run.
type TargetPrepError struct {
	Dir string
	Err error
}

func (e *TargetPrepError) Error() string {
	return fmt.Sprintf("prepare target %q: %v", e.Dir, e.Err)
}

func (e *TargetPrepError) Unwrap() error {
	return e.Err
}

// ListingError reports a failed remote enumeration call. It is fatal to the
// whole run; objects materialized from earlier pages remain on disk.
type ListingError struct {
	Prefix string
	Err    error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("list objects under %q: %v", e.Prefix, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}
