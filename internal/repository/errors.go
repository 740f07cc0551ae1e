// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios and map
// them to HTTP statuses: a missing check becomes 404, an invalid state
// transition 409, a lock held by another workstation 409 with holder
// details, and so on.
package repository

import (
	"errors"
	"fmt"
	"time"
)

// ErrCheckNotFound is returned when the referenced check does not exist
// in the local store. Handlers should translate this into HTTP 404.
var ErrCheckNotFound = errors.New("check not found")

// ErrItemNotFound is returned when the referenced check item does not
// exist or belongs to a different check. Handlers should translate this
// into HTTP 404.
var ErrItemNotFound = errors.New("check item not found")

// ErrInvalidState is returned when a mutating operation targets a check
// that is already closed or voided. Both states are terminal, so the
// operation can never succeed; handlers should translate this into
// HTTP 409.
var ErrInvalidState = errors.New("check is not open")

// ErrLockNotFound is returned by lock reads when no non-expired lease
// exists for the check.
var ErrLockNotFound = errors.New("lock not found")

// ErrLockLost is returned when a workstation tries to refresh a lease it
// no longer holds, either because the lease expired or because another
// workstation acquired it after expiry. The caller must stop editing and
// warn the operator.
var ErrLockLost = errors.New("lock lease lost")

// ErrRangeExhausted is returned when a workstation's check number range
// has no numbers left. This is an operational condition requiring range
// reassignment; numbers are never wrapped around silently.
var ErrRangeExhausted = errors.New("check number range exhausted")

// ErrRangeNotFound is returned when no number range has been provisioned
// for the calling workstation.
var ErrRangeNotFound = errors.New("no check number range for workstation")

// LockConflictError is returned when a non-expired lease on the check is
// held by a different workstation. It carries the holder and the lease
// expiry so the UI can show who has the check and for how long.
type LockConflictError struct {
	CheckID       string
	WorkstationID string    // workstation currently holding the lease
	ExpiresAt     time.Time // when the holder's lease lapses absent renewal
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("check %s locked by workstation %s until %s",
		e.CheckID, e.WorkstationID, e.ExpiresAt.UTC().Format(time.RFC3339))
}
