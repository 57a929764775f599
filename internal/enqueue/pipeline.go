package enqueue

import (
	"context"
	"path"
	"strings"

	"github.com/transferd/transferd/internal/store"
	"github.com/transferd/transferd/pkg/errors"
	"github.com/transferd/transferd/pkg/logging"
	"github.com/transferd/transferd/pkg/types"
)

// DefaultBatchSize matches the teacher's hard-coded flush threshold
// (FolderRunnable.run: "if batch_size % 100 == 0").
const DefaultBatchSize = 100

// EventKind enumerates the events emitted from a Pipeline.Run, mirroring
// the teacher's Qt started/select/process_queue/error/finished signals.
type EventKind int

const (
	EventStarted EventKind = iota
	EventBatchFlushed
	EventError
	EventFinished
)

// Event reports pipeline progress. On EventBatchFlushed, Count is the
// number of rows enqueued so far from the current source (the explicit
// file list or one folder); on EventFinished it is the run's total.
// ProcessQueue mirrors Config.ProcessQueue on flush events, so the
// caller knows whether to also wake the executor (§4.6 step 5).
type Event struct {
	Kind         EventKind
	Count        int64
	Err          error
	ProcessQueue bool
}

// Config governs one Pipeline run.
type Config struct {
	// BatchSize bounds how many matched files accumulate per
	// destination bucket before a flush to the Transfer Store.
	BatchSize int

	// Recursive controls whether directory sources are walked
	// (Adapter.Walk) or only listed one level deep (Adapter.Listdir).
	Recursive bool

	// ProcessQueue, when true, asks the caller to also wake the
	// executor after each flush (§4.6 step 5's "add and start").
	// Pipeline itself does not drive the executor; it only reports the
	// request via Event so the caller (internal/engine) can act on it.
	ProcessQueue bool

	// Filters are ANDed against every candidate file.
	Filters []Filter
}

// Pipeline is the Enqueue Pipeline (C6): it walks sources, filters
// files, and batch-inserts matched rows via the Transfer Store.
type Pipeline struct {
	store *store.Store
	log   *logging.Logger
}

// New returns a Pipeline persisting through st.
func New(st *store.Store, log *logging.Logger) *Pipeline {
	return &Pipeline{store: st, log: log}
}

// bucket accumulates matched files destined for one (destinationRoot,
// destinationKind) pair until it reaches cfg.BatchSize.
type bucket struct {
	destRoot string
	destKind types.BackendKind
	items    []store.NewTransfer
}

// Run walks each directory in folders (recursively when cfg.Recursive),
// and enqueues every plain file in files, matching cfg.Filters against
// candidate files and fanning each surviving file out to every
// destination. It returns the total number of rows enqueued, blocking
// until the pipeline finishes.
//
// Run honors ctx cancellation at the next file boundary (§4.6's stop
// policy): any partially accumulated batch is flushed before
// returning, matching the teacher's "a stop in the middle of a
// directory walk is honored at the next file".
func (p *Pipeline) Run(ctx context.Context, files, folders, destinations []types.Adapter, cfg Config) (int64, error) {
	events, total := p.RunWithEvents(ctx, files, folders, destinations, cfg)
	var firstErr error
	for ev := range events {
		if ev.Kind == EventError && firstErr == nil {
			firstErr = ev.Err
		}
	}
	return *total, firstErr
}

// RunWithEvents behaves like Run but also reports progress on the
// returned channel, which is closed when the pipeline returns. The
// caller must keep draining it.
func (p *Pipeline) RunWithEvents(ctx context.Context, files, folders, destinations []types.Adapter, cfg Config) (<-chan Event, *int64) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	events := make(chan Event, 8)
	total := new(int64)

	go func() {
		defer close(events)
		events <- Event{Kind: EventStarted}

		if len(files) > 0 {
			n, err := p.enqueueFiles(ctx, files, destinations, cfg, events)
			*total += n
			if err != nil {
				events <- Event{Kind: EventError, Err: err}
			}
		}

		for _, folder := range folders {
			if ctx.Err() != nil {
				break
			}
			n, err := p.enqueueFolder(ctx, folder, destinations, cfg, events)
			*total += n
			if err != nil {
				events <- Event{Kind: EventError, Err: err}
			}
		}

		events <- Event{Kind: EventFinished, Count: *total, ProcessQueue: cfg.ProcessQueue}
	}()

	return events, total
}

// enqueueFiles handles files passed explicitly (CopyFilesAction /
// QueueFilesAction in the teacher): no walk needed, destination is
// join(destination.Root(), basename(file.Root())) directly.
func (p *Pipeline) enqueueFiles(ctx context.Context, files, destinations []types.Adapter, cfg Config, events chan<- Event) (int64, error) {
	var total int64
	if len(files) == 0 {
		return 0, nil
	}
	srcKind := files[0].Kind()

	buckets := make(map[types.Adapter]*bucket, len(destinations))
	for _, dst := range destinations {
		buckets[dst] = &bucket{destRoot: dst.Root(), destKind: dst.Kind()}
	}

	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		entry := types.Entry{Adapter: f, Size: f.Size(), ModTime: f.Mtime()}
		if !matchAll(cfg.Filters, entry) {
			continue
		}
		for _, dst := range destinations {
			b := buckets[dst]
			b.items = append(b.items, store.NewTransfer{Source: f.Root(), Size: f.Size()})
			if len(b.items) >= cfg.BatchSize {
				p.flushCounted(ctx, b, srcKind, &total, events, cfg.ProcessQueue)
			}
		}
	}
	for _, b := range buckets {
		p.flushCounted(ctx, b, srcKind, &total, events, cfg.ProcessQueue)
	}
	return total, nil
}

// enqueueFolder walks one source directory (recursively unless
// cfg.Recursive is false), applying filters and bucketing matched
// files per destination, preserving the source directory's basename as
// a top-level wrapper and rebasing sub-paths relative to its root
// (§4.6 step 3).
func (p *Pipeline) enqueueFolder(ctx context.Context, folder types.Adapter, destinations []types.Adapter, cfg Config, events chan<- Event) (int64, error) {
	var total int64
	srcKind := folder.Kind()
	sourceRoot := folder.Root()
	wrapper := path.Base(sourceRoot)

	buckets := make(map[string]*bucket)
	bucketFor := func(dst types.Adapter, destRoot string) *bucket {
		key := destRoot + "\x00" + string(dst.Kind())
		b, ok := buckets[key]
		if !ok {
			b = &bucket{destRoot: destRoot, destKind: dst.Kind()}
			buckets[key] = b
		}
		return b
	}

	visit := func(dir types.Adapter, dirs, files []types.Entry) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel := relativeTo(sourceRoot, dir.Root())

		for _, file := range files {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !matchAll(cfg.Filters, file) {
				continue
			}
			for _, dst := range destinations {
				destRoot := path.Join(dst.Root(), wrapper, rel)
				b := bucketFor(dst, destRoot)
				b.items = append(b.items, store.NewTransfer{Source: file.Adapter.Root(), Size: file.Size})
				if len(b.items) >= cfg.BatchSize {
					p.flushCounted(ctx, b, srcKind, &total, events, cfg.ProcessQueue)
				}
			}
		}
		return nil
	}

	var walkErr error
	if cfg.Recursive {
		walkErr = folder.Walk(ctx, visit)
	} else {
		entries, err := folder.Listdir(ctx)
		if err != nil {
			walkErr = err
		} else {
			var files []types.Entry
			for _, e := range entries {
				if !e.IsDir {
					files = append(files, e)
				}
			}
			walkErr = visit(folder, nil, files)
		}
	}

	for _, b := range buckets {
		p.flushCounted(ctx, b, srcKind, &total, events, cfg.ProcessQueue)
	}

	if walkErr != nil && walkErr != context.Canceled {
		return total, errors.NewError(errors.ErrCodeOperationFailed, "enqueue walk failed").
			WithCause(walkErr).WithContext("source", sourceRoot)
	}
	return total, nil
}

func (p *Pipeline) flushCounted(ctx context.Context, b *bucket, srcKind types.BackendKind, total *int64, events chan<- Event, processQueue bool) {
	if len(b.items) == 0 {
		return
	}
	// A stop cancels ctx; the batch already accumulated is still written.
	ids, err := p.store.AddTransfers(context.WithoutCancel(ctx), b.items, b.destRoot, srcKind, b.destKind)
	b.items = b.items[:0]
	if err != nil {
		if p.log != nil {
			p.log.Warn("failed to flush enqueue batch", map[string]interface{}{
				"destination": b.destRoot,
				"error":       err.Error(),
			})
		}
		events <- Event{Kind: EventError, Err: err}
		return
	}
	*total += int64(len(ids))
	events <- Event{Kind: EventBatchFlushed, Count: *total, ProcessQueue: processQueue}
}

// relativeTo trims root from dir, returning "" when dir equals root,
// matching os.path.relpath(dir, start=root) for the common descendant
// case the walk always produces.
func relativeTo(root, dir string) string {
	if dir == root {
		return ""
	}
	trimmed := strings.TrimPrefix(dir, root)
	return strings.TrimPrefix(trimmed, "/")
}
