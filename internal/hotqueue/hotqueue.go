package hotqueue

import (
	"container/heap"
	"context"
	"sync"

	"github.com/transferd/transferd/pkg/errors"
	"github.com/transferd/transferd/pkg/types"
)

// Queue is a bounded, multi-producer/multi-consumer priority queue of
// TransferItems, ordered by TransferItem.Less (priority ascending, id
// ascending — lower priority integer pops first). In practice the
// Feeder is the only producer and Executor workers are the only
// consumers (§5), but the type itself makes no such assumption.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    itemHeap
	capacity int
	closed   bool
}

// New returns a Queue bounded to capacity items.
func New(capacity int) *Queue {
	q := &Queue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push blocks until there is room for item, ctx is canceled, or the
// queue is closed. On cancellation it returns before enqueuing, so the
// caller's item is never silently dropped after acceptance.
func (q *Queue) Push(ctx context.Context, item *types.TransferItem) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notFull.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) >= q.capacity && ctx.Err() == nil && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return errors.NewError(errors.ErrCodeComponentStopped, "hot queue closed")
	}
	if err := ctx.Err(); err != nil {
		return errors.NewError(errors.ErrCodeOperationCanceled, "push canceled").WithCause(err)
	}

	heap.Push(&q.items, item)
	q.notEmpty.Signal()
	return nil
}

// TryPush attempts to enqueue item without blocking. It reports false
// if the queue is at capacity or closed.
func (q *Queue) TryPush(item *types.TransferItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.items) >= q.capacity {
		return false
	}
	heap.Push(&q.items, item)
	q.notEmpty.Signal()
	return true
}

// Pop blocks until an item is available, ctx is canceled, or the queue
// is closed and drained. It returns (nil, false) on cancellation or
// closed-and-empty.
func (q *Queue) Pop(ctx context.Context) (*types.TransferItem, bool) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notEmpty.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && ctx.Err() == nil && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}

	item := heap.Pop(&q.items).(*types.TransferItem)
	q.notFull.Signal()
	return item, true
}

// Len reports the number of items currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed, waking any blocked Push/Pop callers.
// Items already queued remain poppable until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// itemHeap implements container/heap.Interface over *types.TransferItem.
type itemHeap []*types.TransferItem

func (h itemHeap) Len() int           { return len(h) }
func (h itemHeap) Less(i, j int) bool { return h[i].Less(h[j]) }
func (h itemHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x interface{}) {
	*h = append(*h, x.(*types.TransferItem))
}

func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
