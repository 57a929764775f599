package executor

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/transferd/transferd/internal/bridge"
	"github.com/transferd/transferd/internal/hotqueue"
	"github.com/transferd/transferd/pkg/logging"
	"github.com/transferd/transferd/pkg/types"
)

// DefaultPopTimeout is the bounded wait a worker applies to each hot-queue
// pop before re-evaluating whether to keep looping (§5 "Timeouts").
const DefaultPopTimeout = 5 * time.Second

// Config governs the worker pool.
type Config struct {
	// MaxWorkers is the pool size; never allowed to drop below 1 (§4.5.3).
	MaxWorkers int

	// PopTimeout bounds each hot-queue pop attempt.
	PopTimeout time.Duration

	// Bridge configures the streaming bridge each worker uses to move
	// bytes from source to destination.
	Bridge *bridge.Config
}

// FeederStatus reports whether the Queue Feeder is still promoting rows;
// when it has finished and the hot queue is empty, the pool is done.
type FeederStatus func() bool

// Pool is the Executor's worker pool (C5).
type Pool struct {
	queue         *hotqueue.Queue
	cfg           Config
	feederRunning FeederStatus
	metrics       types.MetricsCollector
	log           *logging.Logger

	events chan Event

	mu          sync.Mutex
	workerCount int

	wg         sync.WaitGroup
	stopping   atomic.Bool
	workerCtx  context.Context
	cancelFunc context.CancelFunc
	doneOnce   sync.Once
}

// New returns a Pool of cfg.MaxWorkers workers draining queue.
// feederRunning is consulted when a pop times out empty, to decide
// whether the pool should keep waiting or treat the batch as complete.
func New(queue *hotqueue.Queue, cfg Config, feederRunning FeederStatus, metrics types.MetricsCollector, log *logging.Logger) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = DefaultPopTimeout
	}
	if cfg.Bridge == nil {
		cfg.Bridge = bridge.DefaultConfig()
	}
	return &Pool{
		queue:         queue,
		cfg:           cfg,
		feederRunning: feederRunning,
		metrics:       metrics,
		log:           log,
		events:        make(chan Event, cfg.MaxWorkers*2),
	}
}

// Events returns the channel workers report lifecycle events on. The
// caller (Status Batcher) must keep draining it for the pool to make
// progress — sends are blocking.
func (p *Pool) Events() <-chan Event {
	return p.events
}

// Start launches cfg.MaxWorkers workers against ctx. Calling Start more
// than once without an intervening Wait is a programming error.
func (p *Pool) Start(ctx context.Context) {
	p.workerCtx, p.cancelFunc = context.WithCancel(ctx)
	p.mu.Lock()
	p.workerCount = p.cfg.MaxWorkers
	n := p.workerCount
	p.mu.Unlock()

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker(p.workerCtx)
	}
	if p.metrics != nil {
		p.metrics.RecordWorkerCount(n)
	}
}

// Stop requests every worker drain its current chunk loop at the next
// boundary, reset its item to QUEUED, remove partial destination bytes,
// and return. Stop does not block; call Wait to block until workers exit.
func (p *Pool) Stop() {
	p.stopping.Store(true)
	if p.cancelFunc != nil {
		p.cancelFunc()
	}
}

// Wait blocks until every worker has returned, then closes the event
// channel.
func (p *Pool) Wait() {
	p.wg.Wait()
	close(p.events)
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		popCtx, cancel := context.WithTimeout(ctx, p.cfg.PopTimeout)
		item, ok := p.queue.Pop(popCtx)
		cancel()

		if !ok {
			if ctx.Err() != nil || p.stopping.Load() {
				return
			}
			if p.feederRunning == nil || !p.feederRunning() {
				p.emitCompletedOnce()
				return
			}
			continue
		}

		p.runItem(ctx, item)
	}
}

func (p *Pool) emitCompletedOnce() {
	p.doneOnce.Do(func() {
		p.events <- Event{Kind: EventCompleted}
	})
}

func (p *Pool) runItem(ctx context.Context, item *types.TransferItem) {
	item.Status = types.StatusTransferring
	item.Started = timestamp()
	p.events <- Event{Kind: EventStarted, Item: item}
	if p.metrics != nil {
		p.metrics.RecordTransferStarted(item.Source.Kind(), item.Destination.Kind())
	}

	started := time.Now()

	skip, err := applyConflictPolicy(ctx, item)
	if err != nil {
		p.fail(item, err)
		p.recordFinish(item, started)
		return
	}
	if skip {
		item.Status = types.StatusCompleted
		item.Message = "Skipped"
		item.Completed = timestamp()
		p.events <- Event{Kind: EventFinished, Item: item}
		p.recordFinish(item, started)
		return
	}

	if err := process(ctx, item, p.cfg.Bridge); err != nil {
		if stderrors.Is(err, context.Canceled) {
			item.Status = types.StatusQueued
			item.Message = "Shutdown"
			if rmErr := item.Destination.Remove(context.Background()); rmErr != nil && p.log != nil {
				p.log.Warn("failed to remove partial destination after stop", map[string]interface{}{
					"transfer_id": item.ID,
					"error":       rmErr.Error(),
				})
			}
			p.events <- Event{Kind: EventStopped, Item: item}
			return
		}
		p.fail(item, err)
		p.recordFinish(item, started)
		return
	}

	item.Status = types.StatusCompleted
	item.Completed = timestamp()
	p.events <- Event{Kind: EventFinished, Item: item}
	p.recordFinish(item, started)
}

func (p *Pool) fail(item *types.TransferItem, err error) {
	item.Status = types.StatusError
	item.Message = err.Error()
	item.Completed = timestamp()
	p.events <- Event{Kind: EventFinished, Item: item}
	if p.metrics != nil {
		p.metrics.RecordError("process", err)
	}
}

func (p *Pool) recordFinish(item *types.TransferItem, started time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordTransferFinished(item.Source.Kind(), item.Destination.Kind(),
		item.Status, item.Processed, time.Since(started))
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
