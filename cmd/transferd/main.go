// Command transferd is the engine's standalone daemon: it loads
// configuration, wires the Transfer Store, account resolver, hot queue,
// and Engine together, and serves the HTTP control surface described in
// SPEC_FULL.md §6.1 until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/transferd/transferd/internal/accounts"
	"github.com/transferd/transferd/internal/config"
	"github.com/transferd/transferd/internal/engine"
	"github.com/transferd/transferd/internal/hotqueue"
	"github.com/transferd/transferd/internal/store"
	"github.com/transferd/transferd/pkg/logging"
	"github.com/transferd/transferd/pkg/metrics"
	"github.com/transferd/transferd/pkg/types"
)

const shutdownGracePeriod = 15 * time.Second

func main() {
	fs := flag.NewFlagSet("transferd", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a transferd YAML config file")
	showVersion := fs.Bool("version", false, "print version and exit")
	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println("transferd (development build)")
		return
	}

	cfg := config.NewDefault()
	if *configPath != "" {
		if err := cfg.LoadFromFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "transferd: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "transferd: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "transferd: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transferd: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("transferd exited with error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func newLogger(cfg *config.Configuration) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Global.LogLevel)
	if err != nil {
		level = logging.INFO
	}
	format := logging.FormatText
	if cfg.Monitoring.Logging.Format == "json" {
		format = logging.FormatJSON
	}

	output := os.Stdout
	return logging.NewLogger(&logging.LoggerConfig{
		Level:         level,
		Output:        output,
		Format:        format,
		IncludeCaller: true,
	})
}

func run(cfg *config.Configuration, log *logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.New(ctx, cfg.Transfers.StorePath, log)
	if err != nil {
		return fmt.Errorf("failed to open transfer store: %w", err)
	}

	resolver, err := newResolver(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build account resolver: %w", err)
	}

	var collector *metrics.Collector
	if cfg.Monitoring.Metrics.Enabled {
		collector, err = metrics.NewCollector(&metrics.Config{
			Enabled:   true,
			Port:      cfg.Global.MetricsPort,
			Path:      "/metrics",
			Namespace: "transferd",
			Labels:    cfg.Monitoring.Metrics.CustomLabels,
		})
		if err != nil {
			return fmt.Errorf("failed to build metrics collector: %w", err)
		}
		if err := collector.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer collector.Stop(context.Background())
	}

	queueCapacity := cfg.Transfers.HotQueueCapacity
	if queueCapacity <= 0 {
		queueCapacity = cfg.Transfers.MaxWorkers * 2
	}
	queue := hotqueue.New(queueCapacity)

	var metricsCollector types.MetricsCollector
	if collector != nil {
		metricsCollector = collector
	}

	eng := engine.New(st, queue, resolver, metricsCollector, engine.Config{
		MaxWorkers:            cfg.Transfers.MaxWorkers,
		DefaultConflictPolicy: types.ConflictPolicy(cfg.Transfers.DefaultConflictPolicy),
		FeederPollInterval:    cfg.Transfers.FeederPollInterval,
		StatusBatchInterval:   cfg.Transfers.StatusBatchInterval,
		StaleRowRetention:     cfg.Transfers.StaleRowRetention,
		MaintenanceSchedule:   cfg.Transfers.MaintenanceSchedule,
	}, log)

	if err := eng.Start(ctx); err != nil {
		_ = st.Close()
		return fmt.Errorf("failed to start engine: %w", err)
	}

	// Drain engine events so the pool/batcher pipeline never blocks on a
	// full Events() channel; the daemon itself has no UI consumer.
	go func() {
		for range eng.Events() {
		}
	}()

	srv := newServer(eng, resolver, collector, log)
	httpSrv := newServerRunner(fmt.Sprintf(":%d", cfg.Global.ControlPort), srv.routes())

	serverErr := make(chan error, 1)
	go func() {
		log.Info("control surface listening", map[string]interface{}{"addr": httpSrv.Addr})
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", map[string]interface{}{"signal": sig.String()})
	case err := <-serverErr:
		if err != nil {
			log.Error("control surface stopped unexpectedly", map[string]interface{}{"error": err.Error()})
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer shutdownCancel()

	if err := shutdownServer(shutdownCtx, httpSrv, shutdownGracePeriod); err != nil {
		log.Warn("control surface shutdown did not complete cleanly", map[string]interface{}{"error": err.Error()})
	}
	if err := eng.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("engine shutdown failed: %w", err)
	}

	return nil
}

// newResolver seeds an in-memory AccountStore/CredentialVault from the
// configuration's static Accounts list. A future deployment that needs
// runtime-editable accounts would swap in a persistent AccountStore
// without touching internal/accounts.Resolver itself.
func newResolver(cfg *config.Configuration, log *logging.Logger) (*accounts.Resolver, error) {
	accts := make([]types.Account, 0, len(cfg.Accounts))
	secrets := make(map[string]string, len(cfg.Accounts))

	for _, a := range cfg.Accounts {
		kind := types.BackendKind(a.Kind)
		if !kind.Valid() {
			return nil, fmt.Errorf("account %q: invalid kind %q", a.Nickname, a.Kind)
		}
		acct := types.Account{
			Kind:      kind,
			Root:      a.Root,
			Region:    a.Region,
			Endpoint:  a.Endpoint,
			AccessKey: a.AccessKey,
			Nickname:  a.Nickname,
		}
		accts = append(accts, acct)
		if a.SecretAccessKey != "" {
			secrets[a.AccessKey] = a.SecretAccessKey
		}
	}

	store := accounts.NewMemoryStore(accts...)
	vault := accounts.NewMemoryVault(secrets)
	return accounts.New(store, vault, log), nil
}
