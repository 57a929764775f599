/*
Package types provides the core interfaces and data structures shared
across transferd: backend identifiers, transfer status and conflict
policy, the durable transfer record and in-flight queue item, account
descriptors, and the Adapter/Sink/MetricsCollector contracts that every
backend and component is built against.

# Architecture Overview

transferd moves objects between accounts on local, S3, and
S3-compatible backends through a uniform Adapter, wired together by a
small pipeline:

	┌─────────────────────────────────────────────┐
	│         cmd/transferd (CLI + control)       │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│   engine → feeder → executor → bridge      │
	└─────────────────────────────────────────────┘
	          │        │        │        │
	┌─────────┴───┐ ┌──┴──┐ ┌───┴───┐ ┌──┴──────┐
	│   Adapter   │ │Store│ │Enqueue│ │Metrics  │
	│(local/s3/..)│ │     │ │Batcher│ │         │
	└─────────────┘ └─────┘ └───────┘ └─────────┘

# Core Interfaces

Adapter:
The uniform capability set over backend kinds — Listdir, Walk, Exists,
Makedirs, stat accessors, and the streaming Download/Upload pair. Every
backend package (internal/adapter/local, internal/adapter/s3) implements
this interface; the bridge and executor depend only on it.

Sink:
The streaming-write endpoint returned by Adapter.Upload. Write may be
called any number of times; Finalize flushes any buffered tail.

MetricsCollector:
Implemented by pkg/metrics. Reports transfer start/finish events, queue
depth, worker count, and operation errors for Prometheus scraping.

# Data Structures

BackendKind, Status, ConflictPolicy:
Enums (string-based for BackendKind and ConflictPolicy, an int for
Status) identifying which backend family a path belongs to,
where a transfer sits in its lifecycle, and how the executor should
resolve a destination that already exists.

TransferRecord:
The durable row persisted by internal/store for every transfer: source,
destination, size, backend kinds, priority, status, and timestamps.

TransferItem:
The in-flight counterpart held in the feeder's hot queue and passed to
the executor, including the per-item ConflictPolicy override and a
Less method for priority-queue ordering.

Account:
Describes one configured source or destination: backend kind, root
path or bucket, region/endpoint for S3-family backends, and the
nickname used to reference it from the CLI and control surface.

# Usage Examples

Implementing a new Adapter:

	type MyAdapter struct {
		root string
	}

	func (a *MyAdapter) Kind() types.BackendKind { return types.BackendS3Compat }
	func (a *MyAdapter) Root() string            { return a.root }

	func (a *MyAdapter) Exists(ctx context.Context) (bool, error) {
		// backend-specific stat call
		return true, nil
	}

Constructing a transfer item:

	item := types.TransferItem{
		ID:             42,  // the store row's integer id
		Source:         src, // an Adapter anchored at /local/data/report.csv
		Destination:    dst, // an Adapter anchored at /bucket/reports/report.csv
		Priority:       types.DefaultPriority,
		Status:         types.StatusPending,
		ConflictPolicy: types.PolicyNewer,
	}

# Interface Contracts

1. Context Awareness: every blocking Adapter method accepts
context.Context for cancellation and timeouts.
2. Error Handling: all operations return explicit errors; backends
wrap pkg/errors.TransferError rather than returning bare strings.
3. Streaming: Download/Upload operate on channels and a Sink rather
than buffering whole objects in memory.
4. Idempotence: WithRoot, Makedirs, and Sink.Finalize are safe to call
more than once.

# Thread Safety

Adapter implementations must be safe for concurrent use by multiple
executor workers against distinct roots; a single Adapter instance is
not required to support concurrent calls against the same Root.
*/
package types
