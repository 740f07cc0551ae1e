package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/pos-check-service/internal/model"
	"github.com/iliyamo/pos-check-service/internal/repository"
)

// LockClient is the slice of the lock manager the keeper needs.  The
// repository satisfies it directly; a workstation app talking to a remote
// tier substitutes an HTTP-backed implementation.
type LockClient interface {
	Refresh(ctx context.Context, checkID, workstationID string, ttl time.Duration) (*model.CheckLock, error)
	Release(ctx context.Context, checkID, workstationID string) (bool, error)
}

// LeaseKeeper is the client-side companion of the lock manager.  It tracks
// the set of leases a workstation currently holds and renews each one
// ahead of expiry.  The teardown release is an optimization only — it can
// be lost on a crash or network drop, and correctness rests entirely on
// server-side lease expiry.
type LeaseKeeper struct {
	client        LockClient
	workstationID string
	ttl           time.Duration
	renewLead     time.Duration // renew this long before expiry
	renewFloor    time.Duration // never schedule sooner than this
	onLost        func(checkID string)

	mu   sync.Mutex
	held map[string]chan struct{} // checkID -> stop channel
}

// NewLeaseKeeper constructs a keeper renewing with the given TTL.  onLost
// is invoked (on the keeper's goroutine) when a lease turns out to be
// expired or stolen, so the UI can stop editing and warn the operator; it
// may be nil.
func NewLeaseKeeper(client LockClient, workstationID string, ttl time.Duration, onLost func(checkID string)) *LeaseKeeper {
	if client == nil {
		panic("nil client passed to NewLeaseKeeper")
	}
	return &LeaseKeeper{
		client:        client,
		workstationID: workstationID,
		ttl:           ttl,
		renewLead:     60 * time.Second,
		renewFloor:    30 * time.Second,
		onLost:        onLost,
		held:          make(map[string]chan struct{}),
	}
}

// RenewalDelay computes how long to wait before renewing a lease that
// expires at the given time: renewLead ahead of expiry, floored at
// renewFloor so a freshly extended lease is not hammered.
func (k *LeaseKeeper) RenewalDelay(expiresAt, now time.Time) time.Duration {
	d := expiresAt.Sub(now) - k.renewLead
	if d < k.renewFloor {
		d = k.renewFloor
	}
	return d
}

// Track starts renewing the lease on the given check.  Tracking a check
// that is already tracked is a no-op.
func (k *LeaseKeeper) Track(checkID string, expiresAt time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.held[checkID]; ok {
		return
	}
	stop := make(chan struct{})
	k.held[checkID] = stop
	go k.renewLoop(checkID, expiresAt, stop)
}

// Untrack stops renewing the lease without releasing it; the server-side
// expiry will reclaim it.
func (k *LeaseKeeper) Untrack(checkID string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if stop, ok := k.held[checkID]; ok {
		close(stop)
		delete(k.held, checkID)
	}
}

// Held reports whether the keeper is currently renewing the check's lease.
func (k *LeaseKeeper) Held(checkID string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.held[checkID]
	return ok
}

// ReleaseAll stops every renewal and issues best-effort releases.  Called
// on app teardown; failures are swallowed because the leases will expire
// on their own.
func (k *LeaseKeeper) ReleaseAll(ctx context.Context) {
	k.mu.Lock()
	ids := make([]string, 0, len(k.held))
	for id, stop := range k.held {
		close(stop)
		ids = append(ids, id)
	}
	k.held = make(map[string]chan struct{})
	k.mu.Unlock()

	for _, id := range ids {
		if _, err := k.client.Release(ctx, id, k.workstationID); err != nil {
			log.Printf("lease-keeper: release of %s failed (lease will expire): %v", id, err)
		}
	}
}

func (k *LeaseKeeper) renewLoop(checkID string, expiresAt time.Time, stop chan struct{}) {
	for {
		timer := time.NewTimer(k.RenewalDelay(expiresAt, time.Now().UTC()))
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		lock, err := k.client.Refresh(ctx, checkID, k.workstationID, k.ttl)
		cancel()
		switch {
		case err == nil:
			expiresAt = lock.ExpiresAt
		case errors.Is(err, repository.ErrLockLost):
			log.Printf("lease-keeper: lease on %s lost", checkID)
			k.Untrack(checkID)
			if k.onLost != nil {
				k.onLost(checkID)
			}
			return
		default:
			// Transient failure; the lease may still be live.  Try again
			// shortly, and give up once the lease has certainly lapsed.
			log.Printf("lease-keeper: refresh of %s failed: %v", checkID, err)
			if time.Now().UTC().After(expiresAt) {
				k.Untrack(checkID)
				if k.onLost != nil {
					k.onLost(checkID)
				}
				return
			}
		}
	}
}
