// Package feeder implements the Queue Feeder (spec §4.4): a single
// long-running task that promotes PENDING rows out of the Transfer
// Store, materializes each into a TransferItem by resolving source and
// destination Backend Adapters, and pushes the result into the bounded
// hot queue the Executor drains.
//
// Grounded on original_source/cirrus/database.py's
// DatabaseQueue.__build_queue: the same promote-then-materialize loop,
// translated from Qt signals/QSqlDatabase-per-thread connections into a
// single goroutine driving internal/store and internal/hotqueue.
package feeder
