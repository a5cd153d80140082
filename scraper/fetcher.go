package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/booksync/ingestor/config"
)

// HTTPFetcher fetches detail pages for pipeline workers. Transient failures
// are retried in place with capped exponential backoff so the pipeline only
// ever sees the final outcome of a URL.
type HTTPFetcher struct {
	cfg     *config.Config
	client  *http.Client
	limiter *rate.Limiter
	metrics *Metrics
}

// NewHTTPFetcher builds a fetcher with a tuned transport. metrics may be nil.
func NewHTTPFetcher(cfg *config.Config, metrics *Metrics) *HTTPFetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.FetchTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &HTTPFetcher{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.FetchTimeout,
		},
		limiter: limiter,
		metrics: metrics,
	}
}

// Fetch retrieves one page, retrying transient failures up to the configured
// attempt budget. Permanent failures are surfaced immediately.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	attempts := f.cfg.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, Backoff(f.cfg, attempt-1)); err != nil {
				return nil, err
			}
			f.metrics.IncRetries()
			slog.Debug("retrying fetch",
				slog.String("url", url),
				slog.Int("attempt", attempt),
			)
		}

		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !IsTransientFetch(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	f.metrics.IncRequest("started")
	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.IncFetchError("connection")
		return nil, classifyFetch(err, 0)
	}
	defer resp.Body.Close()

	f.metrics.ObserveDuration(time.Since(start))

	if fe := classifyFetch(nil, resp.StatusCode); fe != nil {
		f.metrics.IncFetchError(fe.Category())
		return nil, fe
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodySize))
	if err != nil {
		f.metrics.IncFetchError("body")
		return nil, classifyFetch(err, resp.StatusCode)
	}
	return body, nil
}

// Backoff returns the delay before retry attempt n (1-based), doubling from
// the configured base and capped at the configured maximum.
func Backoff(cfg *config.Config, attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
