// Package hotqueue implements the bounded in-memory priority queue
// sitting between the Queue Feeder (sole producer) and the Executor's
// worker pool (sole consumers), keyed by (priority, id) per spec §4.4.
// No third-party priority queue appears anywhere in the example pack;
// container/heap is the idiomatic standard-library fit for this shape
// and is how the rest of the Go ecosystem implements the same pattern,
// so no external dependency is pulled in for it.
package hotqueue
