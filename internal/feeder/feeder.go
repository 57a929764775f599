package feeder

import (
	"context"
	"time"

	"github.com/transferd/transferd/internal/hotqueue"
	"github.com/transferd/transferd/internal/store"
	"github.com/transferd/transferd/pkg/logging"
	"github.com/transferd/transferd/pkg/types"
)

// AccountResolver resolves the account-level Adapter to anchor a row's
// source or destination path under: the kind-matching, longest-root-
// prefix account described in spec §4.4. Implemented by internal/accounts;
// declared here, consumer-side, so feeder depends on the capability it
// needs rather than on that package's concrete type.
type AccountResolver interface {
	// Resolve returns the account-rooted Adapter whose Root shares the
	// longest prefix with path among accounts of the given kind, and
	// whether a match was found.
	Resolve(kind types.BackendKind, path string) (types.Adapter, bool)

	// Refresh reloads the cached account list from its backing store.
	Refresh(ctx context.Context) error
}

// Config governs one Feeder's promotion loop.
type Config struct {
	// MaxWorkers sizes each promote_pending call: limit = 2*MaxWorkers,
	// matching the hot queue's capacity so a full promotion always fits.
	MaxWorkers int

	// PollInterval paces successive promote_pending calls so the feeder
	// does not spin against the store while the Enqueue Pipeline is
	// still inserting rows in the background.
	PollInterval time.Duration

	// DefaultConflictPolicy is assigned to every materialized
	// TransferItem; the persisted row carries no per-transfer override
	// (§3's Transfer row has no conflict_policy column).
	DefaultConflictPolicy types.ConflictPolicy
}

// Feeder is the single long-running promotion task (C4) owning its own
// Store handle. It is not safe to Run concurrently from two goroutines.
type Feeder struct {
	store    *store.Store
	queue    *hotqueue.Queue
	accounts AccountResolver
	cfg      Config
	log      *logging.Logger
}

// New returns a Feeder draining st into q, resolving adapters via accounts.
func New(st *store.Store, q *hotqueue.Queue, accounts AccountResolver, cfg Config, log *logging.Logger) *Feeder {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Feeder{store: st, queue: q, accounts: accounts, cfg: cfg, log: log}
}

// Run executes the Idle->Running->{Stopping,terminated} state machine
// (§4.4). It returns when ctx is canceled (Stopping: the caller is
// expected to have already started draining the hot queue) or when a
// promote_pending call observes zero PENDING rows (natural termination:
// this batch is fully fed and the Executor's own drain will finish it).
func (f *Feeder) Run(ctx context.Context) error {
	limit := 2 * f.cfg.MaxWorkers

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		records, err := f.store.PromotePending(ctx, limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		for _, rec := range records {
			if ctx.Err() != nil {
				return nil
			}

			item, ok := f.materialize(ctx, rec)
			if !ok {
				continue
			}

			if err := f.queue.Push(ctx, item); err != nil {
				// Canceled mid-block: the row stays QUEUED and is
				// restored to PENDING by reset_inflight on the next
				// boot/stop cycle.
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.cfg.PollInterval):
		}
	}
}

// materialize resolves source and destination adapters for rec and
// builds a TransferItem. It reports ok=false when no matching account
// exists even after one cache refresh, per §4.4's skip-with-warning path;
// the row remains QUEUED.
func (f *Feeder) materialize(ctx context.Context, rec types.TransferRecord) (*types.TransferItem, bool) {
	srcAccount, ok := f.resolveWithRefresh(ctx, rec.SourceKind, rec.Source)
	if !ok {
		f.warn("no account matches transfer source", rec.ID, rec.Source, rec.SourceKind)
		return nil, false
	}
	dstAccount, ok := f.resolveWithRefresh(ctx, rec.DestinationKind, rec.Destination)
	if !ok {
		f.warn("no account matches transfer destination", rec.ID, rec.Destination, rec.DestinationKind)
		return nil, false
	}

	return &types.TransferItem{
		ID:             rec.ID,
		Source:         srcAccount.WithRoot(rec.Source),
		Destination:    dstAccount.WithRoot(rec.Destination),
		Size:           rec.Size,
		Priority:       types.NormalizePriority(rec.Priority),
		Status:         types.StatusQueued,
		ConflictPolicy: f.cfg.DefaultConflictPolicy,
	}, true
}

func (f *Feeder) resolveWithRefresh(ctx context.Context, kind types.BackendKind, path string) (types.Adapter, bool) {
	if a, ok := f.accounts.Resolve(kind, path); ok {
		return a, true
	}
	if err := f.accounts.Refresh(ctx); err != nil {
		return nil, false
	}
	return f.accounts.Resolve(kind, path)
}

func (f *Feeder) warn(msg string, id int64, path string, kind types.BackendKind) {
	if f.log == nil {
		return
	}
	f.log.Warn(msg, map[string]interface{}{
		"transfer_id": id,
		"path":        path,
		"kind":        string(kind),
	})
}
