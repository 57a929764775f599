package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferd/transferd/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "transfers.db")
	s, err := New(context.Background(), dbPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAddTransfersAssignsSequentialDestination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.AddTransfers(ctx, []NewTransfer{
		{Source: "/local/a.txt", Size: 10, Priority: 2},
		{Source: "/local/b.txt", Size: 20},
	}, "bucket/prefix", types.BackendLocal, types.BackendS3)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	recs, err := s.PromotePending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "bucket/prefix/a.txt", recs[0].Destination)
	assert.Equal(t, types.BackendLocal, recs[0].SourceKind)
	assert.Equal(t, types.BackendS3, recs[0].DestinationKind)
	assert.Equal(t, types.DefaultPriority, recs[1].Priority)
}

func TestPromotePendingOrdersByPriorityThenID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddTransfers(ctx, []NewTransfer{
		{Source: "/a", Size: 1, Priority: 5},
		{Source: "/b", Size: 1, Priority: 1},
		{Source: "/c", Size: 1, Priority: 1},
	}, "dst", types.BackendLocal, types.BackendLocal)
	require.NoError(t, err)

	recs, err := s.PromotePending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "/b", recs[0].Source)
	assert.Equal(t, "/c", recs[1].Source)
	assert.Equal(t, "/a", recs[2].Source)
	for _, r := range recs {
		assert.Equal(t, types.StatusQueued, r.Status)
	}
}

func TestPromotePendingIsAtomicAcrossConcurrentCallers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddTransfers(ctx, []NewTransfer{
		{Source: "/a", Size: 1},
		{Source: "/b", Size: 1},
	}, "dst", types.BackendLocal, types.BackendLocal)
	require.NoError(t, err)

	first, err := s.PromotePending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := s.PromotePending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, second, "rows already QUEUED must never be promoted twice")
}

func TestPromotePendingRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddTransfers(ctx, []NewTransfer{
		{Source: "/a", Size: 1},
		{Source: "/b", Size: 1},
		{Source: "/c", Size: 1},
	}, "dst", types.BackendLocal, types.BackendLocal)
	require.NoError(t, err)

	recs, err := s.PromotePending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestBatchUpdateLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.AddTransfers(ctx, []NewTransfer{{Source: "/a", Size: 1}}, "dst",
		types.BackendLocal, types.BackendLocal)
	require.NoError(t, err)
	id := ids[0]

	recs, err := s.PromotePending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	require.NoError(t, s.BatchUpdateStarted(ctx, []int64{id}, "2026-07-31T00:00:00Z"))
	require.NoError(t, s.BatchUpdateCompleted(ctx, []int64{id}, "2026-07-31T00:00:01Z"))

	// Completed rows no longer show up for promotion, so a second insert
	// promotes only the new row, which then takes the error path.
	ids2, err := s.AddTransfers(ctx, []NewTransfer{{Source: "/b", Size: 1}}, "dst",
		types.BackendLocal, types.BackendLocal)
	require.NoError(t, err)
	recs2, err := s.PromotePending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs2, 1)

	require.NoError(t, s.BatchUpdateError(ctx, []ErrorUpdate{
		{ID: ids2[0], Message: "disk full"},
	}, "2026-07-31T00:00:02Z"))
}

func TestResetInflightRestoresPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddTransfers(ctx, []NewTransfer{{Source: "/a", Size: 1}}, "dst",
		types.BackendLocal, types.BackendLocal)
	require.NoError(t, err)

	_, err = s.PromotePending(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, s.BatchUpdateStarted(ctx, []int64{1}, "2026-07-31T00:00:00Z"))

	require.NoError(t, s.ResetInflight(ctx))

	recs, err := s.PromotePending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1, "reset_inflight must requeue rows stuck QUEUED/TRANSFERRING")
	assert.Empty(t, recs[0].StartTime)
}

func TestCleanClearsTimestampsOnNonTerminalRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddTransfers(ctx, []NewTransfer{{Source: "/a", Size: 1}}, "dst",
		types.BackendLocal, types.BackendLocal)
	require.NoError(t, err)
	_, err = s.PromotePending(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, s.BatchUpdateStarted(ctx, []int64{1}, "2026-07-31T00:00:00Z"))

	require.NoError(t, s.Clean(ctx))

	recs, err := s.PromotePending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].StartTime)
	assert.Empty(t, recs[0].EndTime)
	assert.Empty(t, recs[0].ErrorMessage)
}

func TestDropRowsDeletesByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.AddTransfers(ctx, []NewTransfer{
		{Source: "/a", Size: 1},
		{Source: "/b", Size: 1},
	}, "dst", types.BackendLocal, types.BackendLocal)
	require.NoError(t, err)

	require.NoError(t, s.DropRows(ctx, []int64{ids[0]}))

	recs, err := s.PromotePending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ids[1], recs[0].ID)
}

func TestAddTransfersEmptyIsNoop(t *testing.T) {
	s := newTestStore(t)
	ids, err := s.AddTransfers(context.Background(), nil, "dst", types.BackendLocal, types.BackendLocal)
	require.NoError(t, err)
	assert.Nil(t, ids)
}
