package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pos-check-service/internal/model"
)

// fakeLockClient records refresh and release calls.
type fakeLockClient struct {
	mu       sync.Mutex
	released []string
}

func (f *fakeLockClient) Refresh(_ context.Context, checkID, workstationID string, ttl time.Duration) (*model.CheckLock, error) {
	return &model.CheckLock{
		CheckID:       checkID,
		WorkstationID: workstationID,
		ExpiresAt:     time.Now().UTC().Add(ttl),
	}, nil
}

func (f *fakeLockClient) Release(_ context.Context, checkID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, checkID)
	return true, nil
}

func TestRenewalDelay(t *testing.T) {
	keeper := NewLeaseKeeper(&fakeLockClient{}, "ws-1", 5*time.Minute, nil)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// Expiry far out: wait until renewLead before it.
	d := keeper.RenewalDelay(now.Add(5*time.Minute), now)
	assert.Equal(t, 4*time.Minute, d)

	// Expiry close in: floor keeps the schedule from spinning.
	d = keeper.RenewalDelay(now.Add(70*time.Second), now)
	assert.Equal(t, 30*time.Second, d)

	// Already expired: still floored, the refresh itself reports the loss.
	d = keeper.RenewalDelay(now.Add(-time.Minute), now)
	assert.Equal(t, 30*time.Second, d)
}

func TestTrackUntrackHeld(t *testing.T) {
	keeper := NewLeaseKeeper(&fakeLockClient{}, "ws-1", 5*time.Minute, nil)
	expires := time.Now().UTC().Add(5 * time.Minute)

	assert.False(t, keeper.Held("chk-1"))
	keeper.Track("chk-1", expires)
	assert.True(t, keeper.Held("chk-1"))

	// Tracking twice is a no-op.
	keeper.Track("chk-1", expires)
	assert.True(t, keeper.Held("chk-1"))

	keeper.Untrack("chk-1")
	assert.False(t, keeper.Held("chk-1"))

	// Untracking an unknown check is safe.
	keeper.Untrack("chk-unknown")
}

func TestReleaseAll(t *testing.T) {
	client := &fakeLockClient{}
	keeper := NewLeaseKeeper(client, "ws-1", 5*time.Minute, nil)
	expires := time.Now().UTC().Add(5 * time.Minute)

	keeper.Track("chk-1", expires)
	keeper.Track("chk-2", expires)
	require.True(t, keeper.Held("chk-1"))
	require.True(t, keeper.Held("chk-2"))

	keeper.ReleaseAll(context.Background())

	assert.False(t, keeper.Held("chk-1"))
	assert.False(t, keeper.Held("chk-2"))
	client.mu.Lock()
	defer client.mu.Unlock()
	assert.ElementsMatch(t, []string{"chk-1", "chk-2"}, client.released)
}
