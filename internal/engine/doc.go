// Package engine wires the Transfer Store, Queue Feeder, Executor,
// Enqueue Pipeline, and Status Batcher into the single top-level
// start/stop/shutdown lifecycle named by spec §6's "Engine control
// surface", translating worker events into the
// transfer_started/transfer_finished/transfer_stopped/completed event
// stream the presentation layer consumes.
//
// Grounded on the teacher's internal/distributed.ClusterManager
// (New/Start/Stop, ordered sub-component startup, a stopCh closed once
// to unwind every goroutine) for the lifecycle shape, generalized from
// cluster membership/gossip/consensus — which this engine is a single
// process and has no use for — to supervising the feeder/executor/
// batcher trio. The cluster coordination machinery itself
// (gossip.go, consensus.go, coordinator.go's distributed-operation
// routing) has no counterpart here; see DESIGN.md for why
// internal/distributed was not carried forward.
package engine
