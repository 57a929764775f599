package batcher

import (
	"context"
	"sync"
	"time"

	"github.com/transferd/transferd/internal/executor"
	"github.com/transferd/transferd/internal/store"
	"github.com/transferd/transferd/pkg/logging"
	"github.com/transferd/transferd/pkg/types"
)

// DefaultFlushInterval is the spec's "periodically (default ~1 s)".
const DefaultFlushInterval = time.Second

// Config governs one Batcher's flush cadence.
type Config struct {
	// FlushInterval paces the background drain of both queues.
	FlushInterval time.Duration
}

type startedEntry struct {
	id        int64
	startTime string
}

type finishedEntry struct {
	id      int64
	status  types.Status
	message string
	endTime string
}

// Batcher is the Status Batcher (C7): it coalesces per-item
// start/completed/error transitions reported by the Executor's event
// stream into periodic batch writes against the Transfer Store.
type Batcher struct {
	store *store.Store
	cfg   Config
	log   *logging.Logger

	mu       sync.Mutex
	started  []startedEntry
	finished []finishedEntry

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New returns a Batcher flushing into st.
func New(st *store.Store, cfg Config, log *logging.Logger) *Batcher {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	return &Batcher{store: st, cfg: cfg, log: log, stopCh: make(chan struct{})}
}

// MarkStarted enqueues item's id for the next "started" batch update.
// Call this as soon as a worker transitions an item to TRANSFERRING.
func (b *Batcher) MarkStarted(item *types.TransferItem) {
	b.mu.Lock()
	b.started = append(b.started, startedEntry{id: item.ID, startTime: item.Started})
	b.mu.Unlock()
}

// MarkFinished enqueues item for the next "finished" batch update. The
// single queue is split into COMPLETED and ERROR batches at flush
// time, matching §4.7's "finished is split into error/completed at
// drain time".
func (b *Batcher) MarkFinished(item *types.TransferItem) {
	b.mu.Lock()
	b.finished = append(b.finished, finishedEntry{
		id:      item.ID,
		status:  item.Status,
		message: item.Message,
		endTime: item.Completed,
	})
	b.mu.Unlock()
}

// Consume drains an Executor event channel, translating EventStarted
// into MarkStarted and EventFinished into MarkFinished. EventStopped
// and EventCompleted are not persisted here: a stop-induced reset
// belongs to the store's reset_inflight, run once at engine shutdown,
// not to a per-item batch row. Consume returns when events closes.
func (b *Batcher) Consume(events <-chan executor.Event) {
	for ev := range events {
		switch ev.Kind {
		case executor.EventStarted:
			b.MarkStarted(ev.Item)
		case executor.EventFinished:
			b.MarkFinished(ev.Item)
		}
	}
}

// Start launches the background flush loop, ticking every
// cfg.FlushInterval until ctx is done or Stop is called.
func (b *Batcher) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.loop(ctx)
}

// Stop halts the flush loop and performs one final synchronous flush
// so nothing queued is lost on shutdown.
func (b *Batcher) Stop(ctx context.Context) {
	close(b.stopCh)
	b.wg.Wait()
	b.flush(ctx)
}

func (b *Batcher) loop(ctx context.Context) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.flush(ctx)
		}
	}
}

// flush drains both queues into at most three store calls: one
// BatchUpdateStarted, one BatchUpdateCompleted, one BatchUpdateError
// (§4.7's "one batch update per status class"). A failed call is
// logged and its snapshot re-queued ahead of anything submitted
// during the attempt, so the next tick retries it.
func (b *Batcher) flush(ctx context.Context) {
	b.flushStarted(ctx)
	b.flushFinished(ctx)
}

func (b *Batcher) flushStarted(ctx context.Context) {
	b.mu.Lock()
	snapshot := b.started
	b.started = nil
	b.mu.Unlock()
	if len(snapshot) == 0 {
		return
	}

	ids := make([]int64, len(snapshot))
	for i, e := range snapshot {
		ids[i] = e.id
	}

	if err := b.store.BatchUpdateStarted(ctx, ids, snapshot[0].startTime); err != nil {
		b.warn("started", len(snapshot), err)
		b.mu.Lock()
		b.started = append(snapshot, b.started...)
		b.mu.Unlock()
	}
}

func (b *Batcher) flushFinished(ctx context.Context) {
	b.mu.Lock()
	snapshot := b.finished
	b.finished = nil
	b.mu.Unlock()
	if len(snapshot) == 0 {
		return
	}

	var completedIDs []int64
	var errorUpdates []store.ErrorUpdate
	var endTime string
	for _, e := range snapshot {
		endTime = e.endTime
		if e.status == types.StatusError {
			errorUpdates = append(errorUpdates, store.ErrorUpdate{ID: e.id, Message: e.message})
		} else {
			completedIDs = append(completedIDs, e.id)
		}
	}

	var retry []finishedEntry

	if len(completedIDs) > 0 {
		if err := b.store.BatchUpdateCompleted(ctx, completedIDs, endTime); err != nil {
			b.warn("completed", len(completedIDs), err)
			for _, e := range snapshot {
				if e.status != types.StatusError {
					retry = append(retry, e)
				}
			}
		}
	}

	if len(errorUpdates) > 0 {
		if err := b.store.BatchUpdateError(ctx, errorUpdates, endTime); err != nil {
			b.warn("error", len(errorUpdates), err)
			for _, e := range snapshot {
				if e.status == types.StatusError {
					retry = append(retry, e)
				}
			}
		}
	}

	if len(retry) > 0 {
		b.mu.Lock()
		b.finished = append(retry, b.finished...)
		b.mu.Unlock()
	}
}

func (b *Batcher) warn(class string, count int, err error) {
	if b.log == nil {
		return
	}
	b.log.Warn("status batch flush failed, retrying next tick", map[string]interface{}{
		"class": class,
		"count": count,
		"error": err.Error(),
	})
}
