package batcher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferd/transferd/internal/store"
	"github.com/transferd/transferd/pkg/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "transfers.db")
	s, err := store.New(context.Background(), dbPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedTransfer(t *testing.T, s *store.Store, source string) int64 {
	t.Helper()
	ids, err := s.AddTransfers(context.Background(), []store.NewTransfer{{Source: source, Size: 1}},
		"dst", types.BackendLocal, types.BackendLocal)
	require.NoError(t, err)
	return ids[0]
}

func TestBatcherFlushesStartedOnTick(t *testing.T) {
	s := newTestStore(t)
	id := seedTransfer(t, s, "/a")
	_, err := s.PromotePending(context.Background(), 10)
	require.NoError(t, err)

	b := New(s, Config{FlushInterval: 10 * time.Millisecond}, nil)
	b.MarkStarted(&types.TransferItem{ID: id, Started: "2026-07-31T00:00:00Z"})

	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)
	time.Sleep(40 * time.Millisecond)
	b.Stop(ctx)
	cancel()

	recs, err := s.PromotePending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recs, "already-transferring row should not be re-promoted")
}

func TestBatcherSplitsFinishedByStatus(t *testing.T) {
	s := newTestStore(t)
	okID := seedTransfer(t, s, "/ok")
	errID := seedTransfer(t, s, "/err")

	b := New(s, Config{FlushInterval: time.Hour}, nil)
	b.MarkFinished(&types.TransferItem{ID: okID, Status: types.StatusCompleted, Completed: "t1"})
	b.MarkFinished(&types.TransferItem{ID: errID, Status: types.StatusError, Message: "boom", Completed: "t1"})

	b.flush(context.Background())
	assert.Empty(t, b.finished)

	recs, err := s.PromotePending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recs, "neither row left PENDING once batched")
}

func TestBatcherStopFlushesPendingQueues(t *testing.T) {
	s := newTestStore(t)
	id := seedTransfer(t, s, "/a")

	b := New(s, Config{FlushInterval: time.Hour}, nil)
	b.MarkStarted(&types.TransferItem{ID: id, Started: "t0"})

	ctx := context.Background()
	b.Start(ctx)
	b.Stop(ctx)

	assert.Empty(t, b.started)
}

func TestBatcherRetriesFailedFlushNextTick(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	b := New(s, Config{FlushInterval: time.Hour}, nil)
	b.MarkStarted(&types.TransferItem{ID: 1, Started: "t0"})

	b.flush(context.Background())
	assert.Len(t, b.started, 1, "failed flush keeps the entry queued for retry")
}
