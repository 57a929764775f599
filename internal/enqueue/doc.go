// Package enqueue implements the recursive Enqueue Pipeline (C6,
// spec §4.6): walking source trees, applying composable filters, and
// batch-inserting matched files into the Transfer Store as PENDING
// rows.
//
// Grounded on original_source/cirrus/actions/local.py's FilesRunnable,
// FolderRunnable, FoldersRunnable, and MixedItemsRunnable: that file
// drives os.walk, buckets files into batches of 100 keyed by a
// per-directory destination, and calls database.add_transfers once per
// batch, emitting a Qt select/process_queue signal after each flush.
// Pipeline.Run is the goroutine-based equivalent: Event values replace
// the signals, and context cancellation replaces the polled Qt
// "cancelled" flag.
package enqueue
