package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferd/transferd/internal/accounts"
	"github.com/transferd/transferd/internal/adapter/local"
	"github.com/transferd/transferd/internal/hotqueue"
	"github.com/transferd/transferd/internal/store"
	"github.com/transferd/transferd/pkg/types"
)

func newTestEngine(t *testing.T, root string) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.New(context.Background(), filepath.Join(t.TempDir(), "transfers.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	acctStore := accounts.NewMemoryStore(types.Account{Kind: types.BackendLocal, Root: root})
	resolver := accounts.New(acctStore, accounts.NewMemoryVault(nil), nil)

	q := hotqueue.New(16)
	e := New(st, q, resolver, nil, Config{
		MaxWorkers:            2,
		DefaultConflictPolicy: types.PolicyOverwrite,
		FeederPollInterval:    10 * time.Millisecond,
		StatusBatchInterval:   10 * time.Millisecond,
		IdleRepoll:            10 * time.Millisecond,
	}, nil)
	return e, st
}

// drainUntil reads e.Events() until an event matching want arrives or
// the timeout elapses, returning that event's Item.
func drainUntil(t *testing.T, e *Engine, want EventKind, timeout time.Duration) *types.TransferItem {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-e.Events():
			if !ok {
				t.Fatalf("event channel closed before %v observed", want)
			}
			if ev.Kind == want {
				return ev.Item
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", want)
			return nil
		}
	}
}

// TestEngineCopiesSingleLocalFile covers the single-file local-to-local
// copy scenario: a 12-byte source file, overwrite policy, asserting the
// destination's bytes match and the row reaches COMPLETED with
// processed == size.
func TestEngineCopiesSingleLocalFile(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "a.txt")
	require.NoError(t, os.WriteFile(srcPath, []byte("hello world!"), 0o640))

	e, _ := newTestEngine(t, "/")
	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	defer func() { _ = e.Shutdown(ctx) }()

	srcFile, err := local.New(srcPath)
	require.NoError(t, err)
	dstRoot, err := local.New(dstDir)
	require.NoError(t, err)

	n, err := e.Enqueue(ctx, EnqueueRequest{
		Files:            []types.Adapter{srcFile},
		Destinations:     []types.Adapter{dstRoot},
		BatchSize:        10,
		StartImmediately: true,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	item := drainUntil(t, e, EventTransferFinished, 5*time.Second)
	require.NotNil(t, item)
	assert.Equal(t, types.StatusCompleted, item.Status)
	assert.EqualValues(t, 12, item.Processed)

	got, err := os.ReadFile(filepath.Join(dstDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world!", string(got))

	require.NoError(t, e.Stop(ctx))
}

// TestEngineStopResetsInflightRows exercises spec §6's exit behavior: a
// row still QUEUED/TRANSFERRING when Stop is called must be restored to
// PENDING rather than left stranded.
func TestEngineStopResetsInflightRows(t *testing.T) {
	// An empty root shares a zero-length prefix with every path, so
	// Resolve never matches: the feeder's materialize step can never
	// resolve this row's adapters, and it stays QUEUED indefinitely
	// until Stop's ResetInflight reclaims it — a race-free fixture.
	e, st := newTestEngine(t, "")
	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	defer func() { _ = e.Shutdown(ctx) }()

	ids, err := st.AddTransfers(ctx, []store.NewTransfer{{Source: "/tmp/never-resolved.txt", Size: 1}},
		"/tmp/out", types.BackendLocal, types.BackendLocal)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	// The running engine's own feederLoop promotes the row to QUEUED on
	// its own poll tick; materialize then fails to resolve an account
	// and leaves it there (stranded, per §4.4's skip-with-warning path).
	require.Eventually(t, func() bool {
		recs, err := st.PromotePending(ctx, 10)
		return err == nil && len(recs) == 0
	}, 2*time.Second, 10*time.Millisecond, "row never left PENDING")

	require.NoError(t, e.Stop(ctx))

	reset, err := st.PromotePending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reset, 1, "row left QUEUED at stop must be reset to PENDING")
	assert.Equal(t, ids[0], reset[0].ID)
}

// TestEngineDoubleStartReturnsAlreadyStarted exercises the Start guard.
func TestEngineDoubleStartReturnsAlreadyStarted(t *testing.T) {
	e, _ := newTestEngine(t, "/")
	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	defer func() { _ = e.Shutdown(ctx) }()

	err := e.Start(ctx)
	assert.Error(t, err)
}

// TestEngineStopWithoutStartReturnsInvalidState exercises the Stop guard.
func TestEngineStopWithoutStartReturnsInvalidState(t *testing.T) {
	e, _ := newTestEngine(t, "/")
	err := e.Stop(context.Background())
	assert.Error(t, err)
}
