package model

import "time"

// CheckLock represents an exclusive, renewable lease on a check.  At most
// one row exists per check, and its holder is the only workstation entitled
// to mutate the check's items and payments.  Expiry is enforced lazily by
// the lock repository; a crashed holder simply stops renewing and the lease
// becomes reclaimable.
//
// Fields:
//  CheckID       – check being locked (primary key, one row max).
//  WorkstationID – workstation holding the lease.
//  EmployeeID    – employee editing the check, kept for the UI status line.
//  LockedAt      – when the lease was first granted.
//  ExpiresAt     – when the lease lapses absent renewal.
type CheckLock struct {
	CheckID       string    // check_locks.check_id
	WorkstationID string    // check_locks.workstation_id
	EmployeeID    uint64    // check_locks.employee_id
	LockedAt      time.Time // check_locks.locked_at
	ExpiresAt     time.Time // check_locks.expires_at
}
