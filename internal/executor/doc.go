// Package executor implements the Executor worker pool (spec §4.5): a
// fixed number of goroutines draining internal/hotqueue, each applying
// the item's conflict policy and then streaming source to destination
// through internal/bridge.
//
// Grounded on original_source/cirrus/executor.py's Executor class
// (fill_thread_pool/start/stop/_process/run), translated from
// Qt-signal emission and daemon threads into a channel of Events and a
// context-cancelled goroutine pool.
package executor
