package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pos-check-service/internal/model"
)

// fakeCloud records uploads and fails those entity ids listed in failing.
type fakeCloud struct {
	uploads []model.SyncQueueItem
	failing map[string]bool
}

func (f *fakeCloud) Upload(_ context.Context, item model.SyncQueueItem) error {
	f.uploads = append(f.uploads, item)
	if f.failing[item.EntityID] {
		return errors.New("cloud unavailable")
	}
	return nil
}

func TestDrainOnce_RemovesUploadedEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chk := env.openCheck(t)

	cloud := &fakeCloud{}
	worker := NewSyncWorker(env.syncq, env.coord.checks, cloud, nil, time.Second, 50)

	uploaded, failed, err := worker.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, uploaded)
	assert.Equal(t, 0, failed)
	require.Len(t, cloud.uploads, 1)
	assert.Equal(t, chk.ID, cloud.uploads[0].EntityID)

	pending, err := env.syncq.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDrainOnce_MarksCheckCloudSynced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chk := env.openCheck(t)

	worker := NewSyncWorker(env.syncq, env.coord.checks, &fakeCloud{}, nil, time.Second, 50)
	_, _, err := worker.DrainOnce(ctx)
	require.NoError(t, err)

	got, err := env.coord.checks.GetByID(ctx, chk.ID)
	require.NoError(t, err)
	assert.True(t, got.CloudSynced)
}

func TestDrainOnce_FailureKeepsEntryAndCountsAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chk := env.openCheck(t)

	cloud := &fakeCloud{failing: map[string]bool{chk.ID: true}}
	worker := NewSyncWorker(env.syncq, env.coord.checks, cloud, nil, time.Second, 50)

	uploaded, failed, err := worker.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, uploaded)
	assert.Equal(t, 1, failed)

	pending, err := env.syncq.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "cloud unavailable", *pending[0].LastError)
}

func TestDrainOnce_DeadEntriesAreExcluded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chk := env.openCheck(t)

	cloud := &fakeCloud{failing: map[string]bool{chk.ID: true}}
	worker := NewSyncWorker(env.syncq, env.coord.checks, cloud, nil, time.Second, 50)

	for i := 0; i < model.MaxSyncAttempts; i++ {
		_, failed, err := worker.DrainOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, failed)
	}
	// The entry is dead; further cycles no longer touch the cloud.
	attempts := len(cloud.uploads)
	_, failed, err := worker.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, failed)
	assert.Len(t, cloud.uploads, attempts)

	dead, err := env.syncq.GetDead(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, model.MaxSyncAttempts, dead[0].Attempts)
}

func TestDrainOnce_PartialBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bad := env.openCheck(t)
	good := env.openCheck(t)

	cloud := &fakeCloud{failing: map[string]bool{bad.ID: true}}
	worker := NewSyncWorker(env.syncq, env.coord.checks, cloud, nil, time.Second, 50)

	uploaded, failed, err := worker.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, uploaded)
	assert.Equal(t, 1, failed)

	// Only the failing entry remains.
	pending, err := env.syncq.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, bad.ID, pending[0].EntityID)
	_ = good
}

type stubGate struct{ open bool }

func (g stubGate) CloudReachable() bool { return g.open }

func TestRun_SkipsCyclesWhileGateClosed(t *testing.T) {
	env := newTestEnv(t)
	env.openCheck(t)

	cloud := &fakeCloud{}
	worker := NewSyncWorker(env.syncq, env.coord.checks, cloud, stubGate{open: false}, 10*time.Millisecond, 50)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	worker.Run(ctx)

	assert.Empty(t, cloud.uploads, "no uploads may happen while the cloud gate is closed")
	pending, err := env.syncq.GetPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestHTTPCloudClient_Upload(t *testing.T) {
	var gotMethod, gotPath, gotAction string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAction = r.Header.Get("X-Sync-Action")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewHTTPCloudClient(srv.URL, time.Second)
	err := client.Upload(context.Background(), model.SyncQueueItem{
		EntityType: model.SyncEntityCheck,
		EntityID:   "chk-1",
		Action:     model.SyncActionUpdate,
		Payload:    []byte(`{"id":"chk-1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/sync/check/chk-1", gotPath)
	assert.Equal(t, model.SyncActionUpdate, gotAction)
}

func TestHTTPCloudClient_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPCloudClient(srv.URL, time.Second)
	err := client.Upload(context.Background(), model.SyncQueueItem{
		EntityType: model.SyncEntityCheck,
		EntityID:   "chk-1",
		Action:     model.SyncActionCreate,
	})
	assert.Error(t, err)
}
