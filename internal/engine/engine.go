package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/transferd/transferd/internal/batcher"
	"github.com/transferd/transferd/internal/enqueue"
	"github.com/transferd/transferd/internal/executor"
	"github.com/transferd/transferd/internal/feeder"
	"github.com/transferd/transferd/internal/hotqueue"
	"github.com/transferd/transferd/internal/store"
	"github.com/transferd/transferd/pkg/errors"
	"github.com/transferd/transferd/pkg/logging"
	"github.com/transferd/transferd/pkg/types"
)

// Config governs one Engine instance. Zero values are replaced with
// the same defaults internal/feeder, internal/executor, and
// internal/batcher already apply on their own Config types.
type Config struct {
	MaxWorkers            int
	DefaultConflictPolicy types.ConflictPolicy
	FeederPollInterval    time.Duration
	StatusBatchInterval   time.Duration

	// IdleRepoll paces how often a fully-drained feeder re-checks for
	// PENDING rows when nothing has woken it via an immediate enqueue.
	IdleRepoll time.Duration

	// StaleRowRetention bounds how long a terminal (COMPLETED/ERROR) row
	// survives before the maintenance cron drops it. Zero disables the
	// housekeeping job entirely.
	StaleRowRetention time.Duration
	// MaintenanceSchedule is a standard 5-field cron expression; defaults
	// to once daily at 03:00.
	MaintenanceSchedule string
}

func (c Config) withDefaults() Config {
	if c.IdleRepoll <= 0 {
		c.IdleRepoll = 5 * time.Second
	}
	if c.MaintenanceSchedule == "" {
		c.MaintenanceSchedule = "0 3 * * *"
	}
	return c
}

// Engine is the top-level orchestrator: it owns the Transfer Store, the
// hot queue, and one each of Feeder, Pool, and Batcher, and drives their
// start/stop/shutdown lifecycle per spec §6.
type Engine struct {
	store    *store.Store
	queue    *hotqueue.Queue
	accounts feeder.AccountResolver
	feeder   *feeder.Feeder
	pool     *executor.Pool
	batcher  *batcher.Batcher
	enqueue  *enqueue.Pipeline
	cron     *cron.Cron
	log      *logging.Logger
	cfg      Config

	events chan Event

	running    atomic.Bool
	cancel     context.CancelFunc
	wake       chan struct{}
	feederBusy atomic.Bool

	wg        sync.WaitGroup // feederLoop, pumpEvents, pool-waiter
	consumeWG sync.WaitGroup // batcher.Consume
}

// New assembles an Engine from its collaborators. st, q, and resolver
// must outlive the Engine.
func New(st *store.Store, q *hotqueue.Queue, resolver feeder.AccountResolver, metrics types.MetricsCollector, cfg Config, log *logging.Logger) *Engine {
	cfg = cfg.withDefaults()

	f := feeder.New(st, q, resolver, feeder.Config{
		MaxWorkers:            cfg.MaxWorkers,
		PollInterval:          cfg.FeederPollInterval,
		DefaultConflictPolicy: cfg.DefaultConflictPolicy,
	}, log)

	e := &Engine{
		store:    st,
		queue:    q,
		accounts: resolver,
		feeder:   f,
		batcher:  batcher.New(st, batcher.Config{FlushInterval: cfg.StatusBatchInterval}, log),
		enqueue:  enqueue.New(st, log),
		cron:     cron.New(),
		log:      log,
		cfg:      cfg,
		events:   make(chan Event, 64),
		wake:     make(chan struct{}, 1),
	}
	e.pool = executor.New(q, executor.Config{MaxWorkers: cfg.MaxWorkers}, e.feederBusy.Load, metrics, log)
	return e
}

// Events returns the channel the presentation layer drains for
// transfer/worker-count notifications. The caller must keep draining it
// once Start has been called.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Start brings up the accounts resolver, performs the boot-time clean
// (R2: idempotent), and launches the feeder-supervisor, worker pool, and
// status batcher. Returns ErrCodeAlreadyStarted if already running, and
// the spec's "Fatal" kind if the account resolver cannot be refreshed
// (storage file unreadable / credential vault unavailable).
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.NewError(errors.ErrCodeAlreadyStarted, "engine already running")
	}

	if err := e.accounts.Refresh(ctx); err != nil {
		e.running.Store(false)
		return errors.NewError(errors.ErrCodeServiceUnavailable, "account resolver unavailable at startup").
			WithCause(err)
	}
	if err := e.store.Clean(ctx); err != nil {
		e.running.Store(false)
		return errors.NewError(errors.ErrCodeStoreTxFailed, "boot-time clean failed").WithCause(err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.pool.Start(runCtx)
	e.batcher.Start(runCtx)

	e.wg.Add(3)
	go e.feederLoop(runCtx)
	go e.waitPool()
	go e.pumpEvents(e.pool.Events())

	if e.cfg.StaleRowRetention > 0 {
		_, err := e.cron.AddFunc(e.cfg.MaintenanceSchedule, e.runMaintenance)
		if err != nil {
			e.warn("invalid maintenance schedule, housekeeping disabled", map[string]interface{}{
				"schedule": e.cfg.MaintenanceSchedule, "error": err.Error(),
			})
		} else {
			e.cron.Start()
		}
	}

	return nil
}

// Stop halts the feeder and worker pool, waits for every worker to
// drain its current item, and performs one final batcher flush — the
// "graceful" half of spec §6's exit behavior. The store itself is left
// open; call Shutdown to also close it.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.running.CompareAndSwap(true, false) {
		return errors.NewError(errors.ErrCodeInvalidState, "engine not running")
	}

	e.cron.Stop()
	e.pool.Stop()
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.consumeWG.Wait()
	e.batcher.Stop(ctx)

	return e.store.ResetInflight(ctx)
}

// Shutdown performs Stop and then closes the underlying Transfer Store.
// The Engine must not be reused afterward.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.running.Load() {
		if err := e.Stop(ctx); err != nil {
			return err
		}
	}
	return e.store.Close()
}

// EnqueueRequest is the engine's rendition of spec §6's
// enqueue(sources, destinations, filters, recursive, conflict_policy,
// start_immediately) command.
type EnqueueRequest struct {
	Files            []types.Adapter
	Folders          []types.Adapter
	Destinations     []types.Adapter
	Filters          []enqueue.Filter
	Recursive        bool
	BatchSize        int
	StartImmediately bool
}

// Enqueue runs the Enqueue Pipeline against req and, when
// StartImmediately is set, wakes the feeder/pool as soon as rows land
// (§4.6 step 5's "add and start"). It returns the number of rows
// inserted.
func (e *Engine) Enqueue(ctx context.Context, req EnqueueRequest) (int64, error) {
	n, err := e.enqueue.Run(ctx, req.Files, req.Folders, req.Destinations, enqueue.Config{
		BatchSize:    req.BatchSize,
		Recursive:    req.Recursive,
		ProcessQueue: req.StartImmediately,
		Filters:      req.Filters,
	})
	if err == nil && req.StartImmediately && n > 0 {
		e.wakeFeeder()
	}
	return n, err
}

// RemoveRows deletes the given rows from the Transfer Store (R1: a
// round-trip enqueue-then-remove leaves the store unchanged).
func (e *Engine) RemoveRows(ctx context.Context, ids []int64) error {
	return e.store.DropRows(ctx, ids)
}

// ResetQueue performs the same boot-time clean the engine runs at
// Start, on demand: every QUEUED/TRANSFERRING row is restored to
// PENDING and non-terminal timestamps/errors are cleared.
func (e *Engine) ResetQueue(ctx context.Context) error {
	return e.store.Clean(ctx)
}

// QueueDepth reports how many items are currently sitting in the hot
// queue, waiting for a worker.
func (e *Engine) QueueDepth() int {
	return e.queue.Len()
}

// ListTransfers returns up to limit persisted rows, most recent first,
// optionally restricted to one status. Backs the control surface's
// GET /v1/transfers and GET /v1/transfers/errors.
func (e *Engine) ListTransfers(ctx context.Context, status *types.Status, limit int) ([]types.TransferRecord, error) {
	return e.store.ListTransfers(ctx, status, limit)
}

// feederLoop supervises the Feeder: each Run call drains one batch of
// PENDING rows to completion (or until ctx is canceled), then the loop
// waits for either a wake signal (an immediate-start Enqueue) or
// IdleRepoll before trying again, so newly inserted rows are never
// stranded behind an idle feeder.
func (e *Engine) feederLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}

		e.feederBusy.Store(true)
		err := e.feeder.Run(ctx)
		e.feederBusy.Store(false)
		if err != nil {
			e.warn("feeder run returned an error", map[string]interface{}{"error": err.Error()})
		}

		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		case <-time.After(e.cfg.IdleRepoll):
		}
	}
}

// wakeFeeder nudges a currently-idle feederLoop without blocking; a
// feeder already mid-batch will simply see the new rows on its next
// PromotePending poll.
func (e *Engine) wakeFeeder() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// waitPool calls Pool.Wait, which blocks until every worker has
// returned and then closes the pool's event channel — the signal
// pumpEvents needs to stop ranging. Running this in its own goroutine
// keeps Stop from deadlocking against a pump that is still draining.
func (e *Engine) waitPool() {
	defer e.wg.Done()
	e.pool.Wait()
}

// pumpEvents is the single reader of the pool's event channel. It tees
// every event to the batcher (which persists started/finished state)
// and republishes a translated Event for external consumers. It returns
// once poolEvents closes (after waitPool's Pool.Wait returns).
func (e *Engine) pumpEvents(poolEvents <-chan executor.Event) {
	defer e.wg.Done()
	defer close(e.events)

	batcherEvents := make(chan executor.Event, cap(poolEvents))
	e.consumeWG.Add(1)
	go func() {
		defer e.consumeWG.Done()
		e.batcher.Consume(batcherEvents)
	}()
	defer close(batcherEvents)

	for ev := range poolEvents {
		batcherEvents <- ev
		e.events <- translateWorkerEvent(ev)
	}
}

// runMaintenance drops terminal rows older than StaleRowRetention, the
// engine-level "stale-row GC" housekeeping job.
func (e *Engine) runMaintenance() {
	cutoff := time.Now().Add(-e.cfg.StaleRowRetention).UTC().Format(time.RFC3339)
	if err := e.store.DropStaleTerminal(context.Background(), cutoff); err != nil {
		e.warn("maintenance GC failed", map[string]interface{}{"error": err.Error()})
	}
}

// warn is a nil-safe wrapper so Engine can be constructed without a
// logger in tests, mirroring internal/feeder and internal/accounts.
func (e *Engine) warn(msg string, fields map[string]interface{}) {
	if e.log == nil {
		return
	}
	e.log.Warn(msg, fields)
}
