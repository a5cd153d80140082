package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/booksync/ingestor/config"
	"github.com/booksync/ingestor/models"
	"github.com/booksync/ingestor/pipeline"
	"github.com/booksync/ingestor/scraper"
	"github.com/booksync/ingestor/store"
)

func main() {
	cfg := config.DefaultConfig()
	if err := applyEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	configFile := flag.String("config", "", "Optional YAML config file")
	entryPoints := flag.String("entry-points", strings.Join(cfg.EntryPoints, ","), "Comma-separated catalog entry point URLs")
	workers := flag.Int("workers", cfg.WorkerCount, "Number of concurrent page workers")
	batchSize := flag.Int("batch-size", cfg.BatchSize, "Records per upsert batch")
	maxPages := flag.Int("max-pages", cfg.MaxPagesPerSource, "Maximum listing pages per source")
	runTimeout := flag.Duration("run-timeout", cfg.RunTimeout, "Overall run deadline")
	retryCount := flag.Int("retry-count", cfg.RetryCount, "Attempts per fetch and per batch flush")
	rps := flag.Float64("rps", cfg.RequestsPerSecond, "Fetch rate limit in requests/second (0 disables)")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	storeDSN := flag.String("store-dsn", cfg.StoreDSN, "Postgres DSN (empty runs with the in-memory sink)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	if *configFile != "" {
		if err := cfg.ApplyFile(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "config file: %v\n", err)
			os.Exit(1)
		}
	}

	// Explicit flags win over the config file and the environment.
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	if setFlags["entry-points"] {
		cfg.EntryPoints = splitList(*entryPoints)
	}
	if setFlags["workers"] {
		cfg.WorkerCount = *workers
	}
	if setFlags["batch-size"] {
		cfg.BatchSize = *batchSize
	}
	if setFlags["max-pages"] {
		cfg.MaxPagesPerSource = *maxPages
	}
	if setFlags["run-timeout"] {
		cfg.RunTimeout = *runTimeout
	}
	if setFlags["retry-count"] {
		cfg.RetryCount = *retryCount
	}
	if setFlags["rps"] {
		cfg.RequestsPerSecond = *rps
	}
	if setFlags["metrics-addr"] {
		cfg.MetricsAddr = *metricsAddr
	}
	if setFlags["store-dsn"] {
		cfg.StoreDSN = *storeDSN
	}
	cfg.Verbose = *verbose

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, draining in-flight work")
	}()

	metrics := scraper.NewMetrics()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	sink, err := buildSink(ctx, cfg)
	if err != nil {
		slog.Error("initialising sink", slog.Any("error", err))
		os.Exit(1)
	}
	defer sink.Close()

	enum := scraper.NewEnumerator(cfg, metrics)
	fetcher := scraper.NewHTTPFetcher(cfg, metrics)

	slog.Info("starting ingest",
		slog.Int("entry_points", len(cfg.EntryPoints)),
		slog.Int("workers", cfg.WorkerCount),
		slog.Int("batch_size", cfg.BatchSize),
	)

	report, err := pipeline.Run(ctx, cfg, enum, fetcher, sink, metrics)
	if err != nil {
		slog.Error("ingest failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(report)
}

func applyEnv(cfg *config.Config) error {
	if value, ok := config.EnvString("INGEST_ENTRY_POINTS"); ok {
		cfg.EntryPoints = splitList(value)
	}
	if value, ok, err := config.EnvInt("INGEST_WORKERS"); err != nil {
		return err
	} else if ok {
		cfg.WorkerCount = value
	}
	if value, ok, err := config.EnvInt("INGEST_BATCH_SIZE"); err != nil {
		return err
	} else if ok {
		cfg.BatchSize = value
	}
	if value, ok, err := config.EnvInt("INGEST_MAX_PAGES"); err != nil {
		return err
	} else if ok {
		cfg.MaxPagesPerSource = value
	}
	if value, ok, err := config.EnvDuration("INGEST_RUN_TIMEOUT"); err != nil {
		return err
	} else if ok {
		cfg.RunTimeout = value
	}
	if value, ok, err := config.EnvInt("INGEST_RETRY_COUNT"); err != nil {
		return err
	} else if ok {
		cfg.RetryCount = value
	}
	if value, ok := config.EnvString("INGEST_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	if value, ok := config.EnvString("PG_DSN"); ok {
		cfg.StoreDSN = value
	}
	if value, ok := config.EnvString("PG_SCHEMA"); ok {
		cfg.StoreSchema = value
	}
	return nil
}

func buildSink(ctx context.Context, cfg *config.Config) (store.Sink, error) {
	if cfg.StoreDSN == "" {
		slog.Info("no store DSN configured, using in-memory sink")
		return store.NewMemory(), nil
	}
	return store.NewPostgres(ctx, cfg.StoreDSN, cfg.StoreSchema)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func printSummary(report *models.RunReport) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Ingest complete")
	fmt.Printf("  Run ID:         %s\n", report.RunID)
	fmt.Printf("  Discovered:     %d\n", report.Discovered)
	fmt.Printf("  Validated:      %d\n", report.ValidatedOK)
	fmt.Printf("  Persisted:      %d\n", report.PersistedOK)
	fmt.Printf("  Failed:         %d (fetch=%d extract=%d validate=%d persist=%d)\n",
		report.TotalFailed(), report.FetchFailed, report.ExtractedFailed,
		report.ValidatedFailed, report.PersistedFailed)
	if len(report.Warnings) > 0 {
		fmt.Printf("  Warnings:       %d\n", len(report.Warnings))
		for _, w := range report.Warnings {
			fmt.Printf("    - %s\n", w)
		}
	}
	fmt.Printf("  Duration:       %v\n", report.EndTime.Sub(report.StartTime).Round(time.Millisecond))
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
