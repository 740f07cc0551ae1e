// Package connectivity classifies which tier is currently authoritative
// for check operations: the cloud backend, the on-site relay service, or
// the workstation's own embedded store.
package connectivity

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"sync/atomic"
	"time"
)

// Mode is the current connectivity classification.
type Mode int32

const (
	// ModeGreen: cloud and relay both reachable; cloud is primary.
	ModeGreen Mode = iota
	// ModeYellow: cloud unreachable, relay reachable; relay is primary.
	ModeYellow
	// ModeOrange: relay unreachable too; the workstation falls back to
	// its own embedded store.
	ModeOrange
	// ModeRed: complete isolation and the local store is degraded or
	// unavailable (e.g. first run with no cache); check operations must
	// be refused.
	ModeRed
)

// String returns the operator-facing color name.
func (m Mode) String() string {
	switch m {
	case ModeGreen:
		return "GREEN"
	case ModeYellow:
		return "YELLOW"
	case ModeOrange:
		return "ORANGE"
	default:
		return "RED"
	}
}

// Monitor probes the cloud and relay health endpoints plus the local
// store and keeps the latest classification readable without blocking.
// Callers consult Current per request rather than caching a mode for a
// session, because the mode can change mid-session.
type Monitor struct {
	cloudURL string
	relayURL string
	db       *sql.DB
	client   *http.Client
	interval time.Duration
	mode     atomic.Int32
	cloudUp  atomic.Bool
}

// NewMonitor builds a monitor.  Empty cloudURL or relayURL marks that
// tier permanently unreachable, which is how a workstation deployment
// without a relay is configured.  The initial mode is ORANGE until the
// first probe completes, or RED when the store handle is nil.
func NewMonitor(cloudURL, relayURL string, db *sql.DB, probeTimeout, interval time.Duration) *Monitor {
	if probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	m := &Monitor{
		cloudURL: cloudURL,
		relayURL: relayURL,
		db:       db,
		client:   &http.Client{Timeout: probeTimeout},
		interval: interval,
	}
	initial := ModeOrange
	if db == nil {
		initial = ModeRed
	}
	m.mode.Store(int32(initial))
	return m
}

// Current returns the latest classification.
func (m *Monitor) Current() Mode {
	return Mode(m.mode.Load())
}

// CloudReachable reports whether the last probe saw the cloud tier.  The
// sync drain worker consults this before each cycle.  Distinct from the
// mode: a workstation can be ORANGE (relay down) while the cloud itself
// answers, and drain should proceed in that case.
func (m *Monitor) CloudReachable() bool {
	return m.cloudUp.Load()
}

// StoreAvailable reports whether local check operations can be served at
// all.  Handlers refuse with 503 when this is false.
func (m *Monitor) StoreAvailable() bool {
	return m.Current() != ModeRed
}

// Run re-evaluates the classification at the configured interval until
// the context is cancelled.  The first evaluation happens immediately so
// the service does not sit in the startup default for a full interval.
func (m *Monitor) Run(ctx context.Context) {
	m.evaluate(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evaluate(ctx)
		}
	}
}

// Evaluate runs one probe round and returns the resulting mode.  Exposed
// for callers that need an on-demand re-check, e.g. before a tier
// failover decision.
func (m *Monitor) Evaluate(ctx context.Context) Mode {
	return m.evaluate(ctx)
}

func (m *Monitor) evaluate(ctx context.Context) Mode {
	cloud := m.probe(ctx, m.cloudURL)
	relay := m.probe(ctx, m.relayURL)
	store := m.pingStore(ctx)
	m.cloudUp.Store(cloud)

	var next Mode
	switch {
	case !store:
		next = ModeRed
	case cloud && relay:
		next = ModeGreen
	case relay:
		next = ModeYellow
	default:
		next = ModeOrange
	}

	prev := Mode(m.mode.Swap(int32(next)))
	if prev != next {
		log.Printf("connectivity: mode %s -> %s (cloud=%t relay=%t store=%t)",
			prev, next, cloud, relay, store)
	}
	return next
}

// probe considers a tier reachable when its health endpoint answers any
// status below 500 within the probe timeout.
func (m *Monitor) probe(ctx context.Context, url string) bool {
	if url == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

func (m *Monitor) pingStore(ctx context.Context) bool {
	if m.db == nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return m.db.PingContext(pingCtx) == nil
}
