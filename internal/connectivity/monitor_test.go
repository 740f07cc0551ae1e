package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pos-check-service/internal/database"
)

func healthServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEvaluate_Green(t *testing.T) {
	cloud := healthServer(t, http.StatusOK)
	relay := healthServer(t, http.StatusOK)
	db, err := database.Open("sqlite3", filepath.Join(t.TempDir(), "caps.db"))
	require.NoError(t, err)
	defer db.Close()

	m := NewMonitor(cloud.URL, relay.URL, db, time.Second, time.Minute)
	assert.Equal(t, ModeOrange, m.Current(), "startup default before the first probe")

	mode := m.Evaluate(context.Background())
	assert.Equal(t, ModeGreen, mode)
	assert.Equal(t, ModeGreen, m.Current())
	assert.True(t, m.CloudReachable())
	assert.True(t, m.StoreAvailable())
}

func TestEvaluate_YellowWhenCloudDown(t *testing.T) {
	relay := healthServer(t, http.StatusOK)
	db, err := database.Open("sqlite3", filepath.Join(t.TempDir(), "caps.db"))
	require.NoError(t, err)
	defer db.Close()

	// Cloud URL points at a closed server.
	cloud := healthServer(t, http.StatusOK)
	cloud.Close()

	m := NewMonitor(cloud.URL, relay.URL, db, time.Second, time.Minute)
	mode := m.Evaluate(context.Background())
	assert.Equal(t, ModeYellow, mode)
	assert.False(t, m.CloudReachable())
	assert.True(t, m.StoreAvailable())
}

func TestEvaluate_OrangeWhenBothTiersDown(t *testing.T) {
	db, err := database.Open("sqlite3", filepath.Join(t.TempDir(), "caps.db"))
	require.NoError(t, err)
	defer db.Close()

	m := NewMonitor("", "", db, time.Second, time.Minute)
	mode := m.Evaluate(context.Background())
	assert.Equal(t, ModeOrange, mode)
	assert.False(t, m.CloudReachable())
	assert.True(t, m.StoreAvailable(), "local operations continue in ORANGE")
}

func TestEvaluate_OrangeWithCloudUpStillDrains(t *testing.T) {
	// Relay down but the cloud answers: mode is ORANGE yet the drain
	// worker's gate stays open.
	cloud := healthServer(t, http.StatusOK)
	db, err := database.Open("sqlite3", filepath.Join(t.TempDir(), "caps.db"))
	require.NoError(t, err)
	defer db.Close()

	m := NewMonitor(cloud.URL, "", db, time.Second, time.Minute)
	mode := m.Evaluate(context.Background())
	assert.Equal(t, ModeOrange, mode)
	assert.True(t, m.CloudReachable())
}

func TestEvaluate_RedWithoutStore(t *testing.T) {
	cloud := healthServer(t, http.StatusOK)
	relay := healthServer(t, http.StatusOK)

	m := NewMonitor(cloud.URL, relay.URL, nil, time.Second, time.Minute)
	assert.Equal(t, ModeRed, m.Current(), "nil store handle starts RED")

	mode := m.Evaluate(context.Background())
	assert.Equal(t, ModeRed, mode, "no store refuses check operations even with both tiers up")
	assert.False(t, m.StoreAvailable())
}

func TestProbe_ServerErrorCountsAsDown(t *testing.T) {
	cloud := healthServer(t, http.StatusInternalServerError)
	relay := healthServer(t, http.StatusOK)
	db, err := database.Open("sqlite3", filepath.Join(t.TempDir(), "caps.db"))
	require.NoError(t, err)
	defer db.Close()

	m := NewMonitor(cloud.URL, relay.URL, db, time.Second, time.Minute)
	mode := m.Evaluate(context.Background())
	assert.Equal(t, ModeYellow, mode)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "GREEN", ModeGreen.String())
	assert.Equal(t, "YELLOW", ModeYellow.String())
	assert.Equal(t, "ORANGE", ModeOrange.String())
	assert.Equal(t, "RED", ModeRed.String())
}
