package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/iliyamo/pos-check-service/internal/model"
	"github.com/iliyamo/pos-check-service/internal/queue"
	"github.com/iliyamo/pos-check-service/internal/repository"
)

// CloudClient uploads one entity snapshot to the cloud system of record.
// Implementations must be idempotent on the cloud side: the queue gives
// at-least-once delivery, and snapshots are only safe under last-write-wins
// upserts keyed by entity id.
type CloudClient interface {
	Upload(ctx context.Context, item model.SyncQueueItem) error
}

// CloudGate reports whether the cloud tier is currently reachable.  The
// connectivity monitor satisfies this; the worker skips drain cycles while
// the gate is closed instead of burning attempts on a known-dead link.
type CloudGate interface {
	CloudReachable() bool
}

// SyncWorker drains the durable sync queue to the cloud at a fixed
// interval.  Successful uploads remove the entry; failures increment the
// attempt counter.  An entry that crosses the retry ceiling is excluded
// from further automatic retries and announced on the broker so operators
// see it — it is never silently dropped.  The retry interval is fixed, no
// exponential backoff.
type SyncWorker struct {
	syncq    *repository.SyncQueueRepo
	checks   *repository.CheckRepo
	client   CloudClient
	gate     CloudGate
	interval time.Duration
	batch    int
}

// NewSyncWorker constructs a SyncWorker.  gate may be nil, in which case
// every cycle attempts a drain.
func NewSyncWorker(syncq *repository.SyncQueueRepo, checks *repository.CheckRepo,
	client CloudClient, gate CloudGate, interval time.Duration, batch int) *SyncWorker {
	if syncq == nil || checks == nil || client == nil {
		panic("nil dependency passed to NewSyncWorker")
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	return &SyncWorker{syncq: syncq, checks: checks, client: client, gate: gate, interval: interval, batch: batch}
}

// Run polls until the context is cancelled.
func (w *SyncWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.gate != nil && !w.gate.CloudReachable() {
				continue
			}
			if _, _, err := w.DrainOnce(ctx); err != nil {
				log.Printf("sync-worker: drain cycle failed: %v", err)
			}
		}
	}
}

// DrainOnce uploads one batch of pending entries in insertion order.  It
// returns how many entries were uploaded and how many failed this cycle.
func (w *SyncWorker) DrainOnce(ctx context.Context) (uploaded, failed int, err error) {
	pending, err := w.syncq.GetPending(ctx, w.batch)
	if err != nil {
		return 0, 0, err
	}
	for _, item := range pending {
		if upErr := w.client.Upload(ctx, item); upErr != nil {
			failed++
			attempts, markErr := w.syncq.MarkAttempt(ctx, item.ID, upErr)
			if markErr != nil {
				return uploaded, failed, markErr
			}
			if attempts == model.MaxSyncAttempts {
				w.announceDead(item, attempts, upErr)
			}
			continue
		}
		if rmErr := w.syncq.Remove(ctx, item.ID); rmErr != nil {
			return uploaded, failed, rmErr
		}
		if item.EntityType == model.SyncEntityCheck {
			if markErr := w.checks.MarkCloudSynced(ctx, item.EntityID, nil); markErr != nil {
				log.Printf("sync-worker: mark check %s synced failed: %v", item.EntityID, markErr)
			}
		}
		uploaded++
	}
	return uploaded, failed, nil
}

// announceDead publishes a dead-letter alert exactly at the crossing of
// the retry ceiling, best effort and off the drain path.
func (w *SyncWorker) announceDead(item model.SyncQueueItem, attempts int, upErr error) {
	ev := queue.SyncDeadLetterEvent{
		QueueID:    item.ID,
		EntityType: item.EntityType,
		EntityID:   item.EntityID,
		Action:     item.Action,
		Attempts:   attempts,
		LastError:  upErr.Error(),
		FailedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = queue.PublishDeadLetter(pubCtx, ev)
	}()
	log.Printf("sync-worker: entry %d (%s/%s) exhausted after %d attempts: %v",
		item.ID, item.EntityType, item.EntityID, attempts, upErr)
}

// HTTPCloudClient uploads snapshots with idempotent PUTs against the
// cloud sync endpoint: PUT {base}/sync/{entityType}/{entityId}.
type HTTPCloudClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPCloudClient builds a client with a bounded per-upload timeout so
// a hung cloud endpoint cannot stall the drain loop.
func NewHTTPCloudClient(baseURL string, timeout time.Duration) *HTTPCloudClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPCloudClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Upload sends one snapshot.  Any non-2xx status is a failure; the queue
// entry stays and will be retried.
func (c *HTTPCloudClient) Upload(ctx context.Context, item model.SyncQueueItem) error {
	url := fmt.Sprintf("%s/sync/%s/%s", c.baseURL, item.EntityType, item.EntityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(item.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Sync-Action", item.Action)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cloud rejected %s/%s: %s", item.EntityType, item.EntityID, resp.Status)
	}
	return nil
}
