package executor

import "github.com/transferd/transferd/pkg/types"

// EventKind distinguishes the lifecycle events a worker reports, mirrored
// on the teacher's signal set (transfer_started/finished/stopped/completed).
type EventKind int

const (
	// EventStarted fires when a worker begins processing an item
	// (status already set to TRANSFERRING).
	EventStarted EventKind = iota

	// EventFinished fires when an item reaches a terminal state
	// (COMPLETED or ERROR) under normal operation.
	EventFinished

	// EventStopped fires when engine shutdown interrupted an item
	// mid-transfer; the item's status is reset to QUEUED and its
	// partial destination bytes have been removed.
	EventStopped

	// EventCompleted fires once, when the hot queue is drained and the
	// feeder is no longer running: the whole batch is done.
	EventCompleted
)

// Event is emitted by a worker onto the Pool's event channel. Item is
// nil only for EventCompleted.
type Event struct {
	Kind EventKind
	Item *types.TransferItem
}
