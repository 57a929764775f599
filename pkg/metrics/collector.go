package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/transferd/transferd/pkg/types"
)

// Collector implements types.MetricsCollector on top of a Prometheus
// registry, with an internal per-pair transfer ledger for the debug
// endpoints.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry

	transfersStarted  *prometheus.CounterVec
	transfersFinished *prometheus.CounterVec
	transferDuration  *prometheus.HistogramVec
	transferBytes     *prometheus.HistogramVec
	queueDepth        prometheus.Gauge
	workerCount       prometheus.Gauge
	errorCounter      *prometheus.CounterVec

	pairs     map[string]*PairMetrics
	lastReset time.Time

	server *http.Server
}

// Config represents metrics configuration.
type Config struct {
	Enabled        bool              `yaml:"enabled"`
	Port           int               `yaml:"port"`
	Path           string            `yaml:"path"`
	Labels         map[string]string `yaml:"labels"`
	Namespace      string            `yaml:"namespace"`
	Subsystem      string            `yaml:"subsystem"`
	UpdateInterval time.Duration     `yaml:"update_interval"`
}

// PairMetrics tracks running totals for one source/destination backend
// kind pair, keyed by "source->dest" in the collector's internal map.
type PairMetrics struct {
	Started       int64         `json:"started"`
	Finished      int64         `json:"finished"`
	Errors        int64         `json:"errors"`
	TotalBytes    int64         `json:"total_bytes"`
	TotalDuration time.Duration `json:"total_duration"`
	LastTransfer  time.Time     `json:"last_transfer"`
}

// NewCollector creates a new metrics collector.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:        true,
			Port:           8080,
			Path:           "/metrics",
			Namespace:      "transferd",
			Subsystem:      "",
			UpdateInterval: 30 * time.Second,
			Labels:         make(map[string]string),
		}
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	registry := prometheus.NewRegistry()

	collector := &Collector{
		config:    config,
		registry:  registry,
		pairs:     make(map[string]*PairMetrics),
		lastReset: time.Now(),
	}

	if err := collector.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

// Start starts the metrics collection server.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	mux.HandleFunc("/health", c.healthHandler)
	mux.HandleFunc("/debug/metrics", c.debugMetricsHandler)
	mux.HandleFunc("/debug/transfers", c.debugTransfersHandler)

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Metrics server error: %v\n", err)
		}
	}()

	go c.updateLoop(ctx)

	return nil
}

// Handler returns the Prometheus scrape handler for c's registry, so a
// caller that runs its own HTTP server (cmd/transferd's control surface)
// can mount GET /metrics alongside it instead of only the standalone
// server Start opens on config.Port.
func (c *Collector) Handler() http.Handler {
	if c.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Stop stops the metrics collection server.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

func pairKey(source, dest types.BackendKind) string {
	return string(source) + "->" + string(dest)
}

// RecordTransferStarted records that a transfer between the given
// backend kinds has been handed to the executor.
func (c *Collector) RecordTransferStarted(sourceKind, destKind types.BackendKind) {
	if !c.config.Enabled {
		return
	}

	c.mu.Lock()
	key := pairKey(sourceKind, destKind)
	pm, exists := c.pairs[key]
	if !exists {
		pm = &PairMetrics{}
		c.pairs[key] = pm
	}
	pm.Started++
	c.mu.Unlock()

	c.transfersStarted.With(prometheus.Labels{
		"source": string(sourceKind),
		"dest":   string(destKind),
	}).Inc()
}

// RecordTransferFinished records the terminal outcome of a transfer:
// its status, bytes moved, and wall-clock duration.
func (c *Collector) RecordTransferFinished(sourceKind, destKind types.BackendKind, status types.Status, bytes int64, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.mu.Lock()
	key := pairKey(sourceKind, destKind)
	pm, exists := c.pairs[key]
	if !exists {
		pm = &PairMetrics{}
		c.pairs[key] = pm
	}
	pm.Finished++
	pm.TotalBytes += bytes
	pm.TotalDuration += duration
	pm.LastTransfer = time.Now()
	if status == types.StatusError {
		pm.Errors++
	}
	c.mu.Unlock()

	c.transfersFinished.With(prometheus.Labels{
		"source": string(sourceKind),
		"dest":   string(destKind),
		"status": status.String(),
	}).Inc()
	c.transferDuration.With(prometheus.Labels{
		"source": string(sourceKind),
		"dest":   string(destKind),
	}).Observe(duration.Seconds())
	if bytes > 0 {
		c.transferBytes.With(prometheus.Labels{
			"source": string(sourceKind),
			"dest":   string(destKind),
		}).Observe(float64(bytes))
	}
}

// RecordQueueDepth reports the current size of the feeder's hot queue.
func (c *Collector) RecordQueueDepth(depth int) {
	if !c.config.Enabled {
		return
	}
	c.queueDepth.Set(float64(depth))
}

// RecordWorkerCount reports how many executor workers are currently
// running.
func (c *Collector) RecordWorkerCount(count int) {
	if !c.config.Enabled {
		return
	}
	c.workerCount.Set(float64(count))
}

// RecordError records an error encountered by the named operation
// (e.g. "feeder.poll", "executor.transfer", "store.commit").
func (c *Collector) RecordError(operation string, err error) {
	if !c.config.Enabled {
		return
	}

	c.errorCounter.With(prometheus.Labels{
		"operation": operation,
		"type":      c.classifyError(err),
	}).Inc()
}

// GetMetrics returns a snapshot of the internal per-pair ledger.
func (c *Collector) GetMetrics() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pairs := make(map[string]*PairMetrics, len(c.pairs))
	for k, v := range c.pairs {
		cp := *v
		pairs[k] = &cp
	}

	return map[string]interface{}{
		"pairs":      pairs,
		"last_reset": c.lastReset,
		"uptime":     time.Since(c.lastReset),
	}
}

// ResetMetrics clears the internal per-pair ledger. Prometheus counters
// are unaffected, since Prometheus counters must never decrease.
func (c *Collector) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pairs = make(map[string]*PairMetrics)
	c.lastReset = time.Now()
}

func (c *Collector) initMetrics() error {
	c.transfersStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "transfers_started_total",
			Help:      "Total number of transfers handed to the executor",
		},
		[]string{"source", "dest"},
	)

	c.transfersFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "transfers_finished_total",
			Help:      "Total number of transfers that reached a terminal status",
		},
		[]string{"source", "dest", "status"},
	)

	c.transferDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "transfer_duration_seconds",
			Help:      "Duration of completed transfers in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 18), // 10ms to ~21 min
		},
		[]string{"source", "dest"},
	)

	c.transferBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "transfer_bytes",
			Help:      "Size of completed transfers in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 2, 24), // 1KB to ~8GB
		},
		[]string{"source", "dest"},
	)

	c.queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "hot_queue_depth",
			Help:      "Current number of items in the feeder's hot queue",
		},
	)

	c.workerCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "executor_workers",
			Help:      "Number of executor worker goroutines currently running",
		},
	)

	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors by operation and classification",
		},
		[]string{"operation", "type"},
	)

	return nil
}

func (c *Collector) registerMetrics() error {
	collectors := []prometheus.Collector{
		c.transfersStarted,
		c.transfersFinished,
		c.transferDuration,
		c.transferBytes,
		c.queueDepth,
		c.workerCount,
		c.errorCounter,
	}

	for _, collector := range collectors {
		if err := c.registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

func (c *Collector) classifyError(err error) string {
	if err == nil {
		return "none"
	}
	errStr := err.Error()
	switch {
	case contains(errStr, "timeout"):
		return "timeout"
	case contains(errStr, "connection"):
		return "connection"
	case contains(errStr, "not found"):
		return "not_found"
	case contains(errStr, "permission"):
		return "permission"
	case contains(errStr, "throttl"):
		return "throttling"
	case contains(errStr, "conflict"):
		return "conflict"
	default:
		return "other"
	}
}

func (c *Collector) updateLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Queue depth and worker count are pushed by callers
			// (the executor pushes worker count) rather than polled here.
		}
	}
}

// HTTP handlers

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"transferd-metrics"}`))
}

func (c *Collector) debugMetricsHandler(w http.ResponseWriter, r *http.Request) {
	metrics := c.GetMetrics()

	w.Header().Set("Content-Type", "application/json")

	writef := func(format string, args ...interface{}) { _, _ = fmt.Fprintf(w, format, args...) }

	writef("{\n")
	writef("  \"uptime\": \"%v\",\n", metrics["uptime"])
	writef("  \"last_reset\": \"%v\",\n", metrics["last_reset"])
	writef("  \"pairs\": {\n")

	if pairs, ok := metrics["pairs"].(map[string]*PairMetrics); ok {
		first := true
		for name, pm := range pairs {
			if !first {
				writef(",\n")
			}
			writef("    \"%s\": {\n", name)
			writef("      \"started\": %d,\n", pm.Started)
			writef("      \"finished\": %d,\n", pm.Finished)
			writef("      \"errors\": %d,\n", pm.Errors)
			writef("      \"total_bytes\": %d\n", pm.TotalBytes)
			writef("    }")
			first = false
		}
	}

	writef("\n  }\n")
	writef("}\n")
}

func (c *Collector) debugTransfersHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	w.Header().Set("Content-Type", "text/plain")

	writef := func(format string, args ...interface{}) { _, _ = fmt.Fprintf(w, format, args...) }

	writef("Transfer Pair Summary\n")
	writef("=====================\n\n")
	writef("Uptime: %v\n", time.Since(c.lastReset))
	writef("Last Reset: %v\n\n", c.lastReset)

	if len(c.pairs) == 0 {
		writef("No transfers recorded.\n")
		return
	}

	writef("%-20s %10s %10s %10s %15s %10s\n",
		"Pair", "Started", "Finished", "Errors", "Total Bytes", "Last")
	writef("%-20s %10s %10s %10s %15s %10s\n",
		"----", "-------", "--------", "------", "-----------", "----")

	for name, pm := range c.pairs {
		last := "-"
		if !pm.LastTransfer.IsZero() {
			last = pm.LastTransfer.Format("15:04:05")
		}
		writef("%-20s %10d %10d %10d %15d %10s\n",
			name, pm.Started, pm.Finished, pm.Errors, pm.TotalBytes, last)
	}
}

// Utility functions

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr ||
		(len(s) > len(substr) && indexOf(s, substr) >= 0))
}

func indexOf(s, substr string) int {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
