// Package pipeline drives discovered book URLs through fetch, extract and
// validate with a bounded worker pool, then batches validated records into
// the upsert sink. Per-URL failures never abort a run; the only fatal
// conditions are an unusable configuration and a first-source enumeration
// failure.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/booksync/ingestor/config"
	"github.com/booksync/ingestor/models"
	"github.com/booksync/ingestor/parser"
	"github.com/booksync/ingestor/scraper"
	"github.com/booksync/ingestor/store"
)

// Fetcher retrieves one page's raw content. Implementations own their
// transport-level retry policy; the pipeline only sees final outcomes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Enumerator produces the deduplicated URL set for a run, plus warnings for
// sources that failed after the first.
type Enumerator interface {
	Enumerate(ctx context.Context, entryPoints []string) ([]models.BookURL, []string, error)
}

// result is one worker's outcome for one URL. Exactly one of record/err is
// set; stage attributes the failure.
type result struct {
	url    models.BookURL
	stage  models.Stage
	record *models.BookRecord
	err    error
}

// Runner is the concurrency-bounded pipeline over a fixed URL set.
type Runner struct {
	cfg     *config.Config
	fetch   Fetcher
	sink    store.Sink
	metrics *scraper.Metrics
}

// NewRunner validates the configuration and builds a runner. metrics may be
// nil.
func NewRunner(cfg *config.Config, fetch Fetcher, sink store.Sink, metrics *scraper.Metrics) (*Runner, error) {
	if cfg.WorkerCount <= 0 {
		return nil, fmt.Errorf("pipeline: worker count must be positive")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("pipeline: batch size must be positive")
	}
	if fetch == nil {
		return nil, fmt.Errorf("pipeline: fetcher is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("pipeline: sink is required")
	}
	return &Runner{cfg: cfg, fetch: fetch, sink: sink, metrics: metrics}, nil
}

// Run drives every URL through the pool and returns the finalized report.
// Cancelling ctx stops dispatch immediately; in-flight work drains into the
// report so partial progress is never lost.
func (r *Runner) Run(ctx context.Context, urls []models.BookURL) *models.RunReport {
	report := models.NewRunReport()
	report.Discovered = len(urls)

	urlCh := make(chan models.BookURL)
	resultCh := make(chan result, r.cfg.WorkerCount)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.WorkerCount; i++ {
		wg.Add(1)
		go r.worker(ctx, urlCh, resultCh, &wg)
	}

	go func() {
		defer close(urlCh)
		for _, u := range urls {
			select {
			case urlCh <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Single accumulator: the report and the batch are touched by this
	// goroutine only.
	batch := make([]*models.BookRecord, 0, r.cfg.BatchSize)
	for res := range resultCh {
		if res.err != nil {
			if res.stage == models.StageValidate {
				// Extraction succeeded for URLs that fail validation.
				report.ExtractedOK++
			}
			report.AddFailure(res.url, res.stage, res.err.Error())
			r.metrics.IncStageFailure(string(res.stage))
			slog.Debug("page failed",
				slog.String("url", string(res.url)),
				slog.String("stage", string(res.stage)),
				slog.Any("error", res.err),
			)
			continue
		}

		report.ExtractedOK++
		report.ValidatedOK++
		r.metrics.IncValidated()

		batch = append(batch, res.record)
		if len(batch) >= r.cfg.BatchSize {
			r.flush(ctx, batch, report)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		r.flush(ctx, batch, report)
	}

	report.EndTime = time.Now()
	return report
}

func (r *Runner) worker(ctx context.Context, urlCh <-chan models.BookURL, resultCh chan<- result, wg *sync.WaitGroup) {
	defer wg.Done()
	for u := range urlCh {
		resultCh <- r.process(ctx, u)
	}
}

func (r *Runner) process(ctx context.Context, u models.BookURL) result {
	raw, err := r.fetch.Fetch(ctx, string(u))
	if err != nil {
		return result{url: u, stage: models.StageFetch, err: err}
	}

	fields, err := parser.Extract(raw)
	if err != nil {
		return result{url: u, stage: models.StageExtract, err: err}
	}

	record, err := parser.Validate(fields, string(u))
	if err != nil {
		return result{url: u, stage: models.StageValidate, err: err}
	}
	return result{url: u, record: record}
}

// flush hands one batch to the sink, retrying transient whole-batch
// failures with capped exponential backoff. When the attempt budget runs
// out every record in the batch is recorded as a persist failure; the run
// continues with subsequent batches.
func (r *Runner) flush(ctx context.Context, batch []*models.BookRecord, report *models.RunReport) {
	attempts := r.cfg.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := waitBackoff(ctx, scraper.Backoff(r.cfg, attempt-1)); err != nil {
				lastErr = err
				break
			}
			r.metrics.IncRetries()
			slog.Debug("retrying batch flush",
				slog.Int("attempt", attempt),
				slog.Int("records", len(batch)),
			)
		}

		results, err := r.sink.Upsert(ctx, batch)
		if err == nil {
			r.metrics.IncBatchFlushed()
			for i, res := range results {
				if res.Err != nil {
					report.AddFailure(models.BookURL(batch[i].SourceURL), models.StagePersist, res.Err.Error())
					r.metrics.IncUpsert("failed")
					continue
				}
				report.PersistedOK++
				r.metrics.IncUpsert("ok")
			}
			return
		}

		lastErr = err
		if !store.IsTransient(err) {
			break
		}
	}

	slog.Error("batch flush failed",
		slog.Int("records", len(batch)),
		slog.Any("error", lastErr),
	)
	for _, rec := range batch {
		report.AddFailure(models.BookURL(rec.SourceURL), models.StagePersist, lastErr.Error())
		r.metrics.IncUpsert("failed")
	}
}

func waitBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run is the single entry operation: enumerate the sources, drive the pool,
// and return the report. The returned error is non-nil only for an invalid
// configuration or a fatal enumeration failure; every other failure is
// aggregated into the report.
func Run(ctx context.Context, cfg *config.Config, enum Enumerator, fetch Fetcher, sink store.Sink, metrics *scraper.Metrics) (*models.RunReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	urls, warnings, err := enum.Enumerate(ctx, cfg.EntryPoints)
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	runner, err := NewRunner(cfg, fetch, sink, metrics)
	if err != nil {
		return nil, err
	}

	slog.Info("pipeline starting",
		slog.Int("urls", len(urls)),
		slog.Int("workers", cfg.WorkerCount),
		slog.Int("batch_size", cfg.BatchSize),
	)

	report := runner.Run(ctx, urls)
	report.Warnings = warnings
	return report, nil
}
