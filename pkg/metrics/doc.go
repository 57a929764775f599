/*
Package metrics provides Prometheus-based metrics collection for the
transfer engine: queue depth, worker count, and per-backend-pair
transfer throughput and error rates.

# Overview

Collector implements types.MetricsCollector. In this module
internal/executor.Pool is the component that reports through it
(transfer starts and finishes, worker count, errors), and
cmd/transferd mounts its Handler on the control surface.

	┌─────────────┐
	│  Collector  │  ← Main metrics aggregator
	└──────┬──────┘
	       │
	   ┌───┴────────────────────────────┐
	   │                                │
	┌──▼───────────┐         ┌─────────▼──────┐
	│  Prometheus  │         │  HTTP Endpoints │
	│   Registry   │         │  /metrics       │
	│              │         │  /health        │
	│ - Counters   │         │  /debug/metrics │
	│ - Histograms │         └─────────────────┘
	│ - Gauges     │
	└──────────────┘

# Usage

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Port:      8080,
		Path:      "/metrics",
		Namespace: "transferd",
	})
	if err != nil {
		log.Fatal(err)
	}

	if err := collector.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer collector.Stop(ctx)

# Recording Transfer Activity

	collector.RecordTransferStarted(types.BackendLocal, types.BackendS3)
	// ... transfer runs ...
	collector.RecordTransferFinished(types.BackendLocal, types.BackendS3,
		types.StatusCompleted, bytesWritten, time.Since(start))

Queue depth and worker count are pushed rather than polled. The
executor pool pushes its worker count on every change; no component in
this module calls RecordQueueDepth, so the hot-queue gauge stays at
zero unless a caller reports it:

	collector.RecordQueueDepth(hotQueue.Len())
	collector.RecordWorkerCount(workers)

# Error Tracking

	if err != nil {
		collector.RecordError("executor.transfer", err)
	}

# Prometheus Metrics

Counters:
  - transferd_transfers_started_total{source,dest}
  - transferd_transfers_finished_total{source,dest,status}
  - transferd_errors_total{operation,type}

Histograms:
  - transferd_transfer_duration_seconds{source,dest}
  - transferd_transfer_bytes{source,dest}

Gauges:
  - transferd_hot_queue_depth
  - transferd_executor_workers

# HTTP Endpoints

/metrics serves the Prometheus exposition format. /health returns a
liveness JSON blob. /debug/metrics and /debug/transfers return
human-readable snapshots of the internal per-pair ledger, useful when
no Prometheus scraper is attached.

# Thread Safety

All Collector methods are safe for concurrent use.
*/
package metrics
