package engine

import (
	"github.com/transferd/transferd/internal/executor"
	"github.com/transferd/transferd/pkg/types"
)

// EventKind enumerates the Engine control surface's event stream (spec
// §6): transfer_started, transfer_finished, transfer_stopped,
// completed, worker_count_changed.
type EventKind int

const (
	EventTransferStarted EventKind = iota
	EventTransferFinished
	EventTransferStopped
	EventCompleted
	EventWorkerCountChanged
)

// Event is published on Engine.Events(). Item is nil for EventCompleted
// and EventWorkerCountChanged; WorkerCount is meaningful only for
// EventWorkerCountChanged.
type Event struct {
	Kind        EventKind
	Item        *types.TransferItem
	WorkerCount int
}

// translateWorkerEvent maps one executor.Event onto the engine's own
// event vocabulary; the presentation layer depends on this package's
// names, not the executor's internal ones.
func translateWorkerEvent(ev executor.Event) Event {
	switch ev.Kind {
	case executor.EventStarted:
		return Event{Kind: EventTransferStarted, Item: ev.Item}
	case executor.EventFinished:
		return Event{Kind: EventTransferFinished, Item: ev.Item}
	case executor.EventStopped:
		return Event{Kind: EventTransferStopped, Item: ev.Item}
	default: // executor.EventCompleted
		return Event{Kind: EventCompleted}
	}
}
