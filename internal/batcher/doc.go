// Package batcher implements the Status Batcher (C7, spec §4.7): two
// coalescing queues of transfer items, "started" and "finished", that
// a periodic timer drains into batched Transfer Store writes instead
// of one store round-trip per item.
//
// Grounded on the teacher's internal/batch.Processor: the same
// snapshot-under-lock-then-flush-outside-lock shape, and the same
// ticker-driven processLoop, generalized from {GET,PUT,DELETE,HEAD}
// backend operations to {started,completed,error} transfer-state
// batching, with one behavioral change the spec requires that the
// teacher's Processor does not have: a flush that fails is not
// dropped. The teacher's flush() takes a snapshot and discards it
// regardless of outcome; Batcher's flush re-queues a failed snapshot
// ahead of whatever arrived during the attempt, so items "stay in the
// queues until persisted" (§4.7).
package batcher
