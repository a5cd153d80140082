// Package scraper discovers book URLs on catalog sources and fetches
// individual pages. Parsing lives in the parser package; persistence in the
// store package.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/booksync/ingestor/config"
	"github.com/booksync/ingestor/models"
)

// Enumerator walks catalog listing pages and collects the detail-page URLs
// for one run. URLs are deduplicated across all sources, so a book linked
// from multiple listing pages is dispatched once.
type Enumerator struct {
	cfg       *config.Config
	metrics   *Metrics
	transport http.RoundTripper
}

// NewEnumerator builds an enumerator. metrics may be nil.
func NewEnumerator(cfg *config.Config, metrics *Metrics) *Enumerator {
	return &Enumerator{cfg: cfg, metrics: metrics}
}

// WithTransport overrides the HTTP transport used by the pagination crawl.
// Tests use this to run against a mock transport.
func (e *Enumerator) WithTransport(rt http.RoundTripper) {
	e.transport = rt
}

// Enumerate visits every entry point in order, following pagination links up
// to the configured page budget per source. A failure on the first entry
// point is fatal; failures on later sources are returned as warnings and
// enumeration continues. The returned URL set is deduplicated.
func (e *Enumerator) Enumerate(ctx context.Context, entryPoints []string) ([]models.BookURL, []string, error) {
	seen, err := lru.New[string, struct{}](e.cfg.DedupeMaxSize)
	if err != nil {
		return nil, nil, fmt.Errorf("enumerate: build dedupe set: %w", err)
	}

	var urls []models.BookURL
	var warnings []string

	for i, entry := range entryPoints {
		if ctx.Err() != nil {
			return urls, warnings, nil
		}

		discovered, pages, err := e.enumerateSource(ctx, entry, seen)
		urls = append(urls, discovered...)
		if err != nil {
			if i == 0 {
				return nil, nil, &EnumerationError{Source: entry, Err: err}
			}
			warning := (&EnumerationError{Source: entry, Err: err}).Error()
			warnings = append(warnings, warning)
			slog.Warn("source enumeration failed",
				slog.String("source", entry),
				slog.Any("error", err),
			)
			continue
		}
		slog.Info("source enumerated",
			slog.String("source", entry),
			slog.Int("pages", pages),
			slog.Int("urls", len(discovered)),
		)
	}
	return urls, warnings, nil
}

func (e *Enumerator) enumerateSource(ctx context.Context, entry string, seen *lru.Cache[string, struct{}]) ([]models.BookURL, int, error) {
	parsed, err := url.Parse(entry)
	if err != nil {
		return nil, 0, fmt.Errorf("parse entry point: %w", err)
	}
	if parsed.Host == "" {
		return nil, 0, fmt.Errorf("entry point must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(e.cfg.UserAgent),
	)
	collector.SetRequestTimeout(e.cfg.FetchTimeout)
	collector.IgnoreRobotsTxt = true
	if e.transport != nil {
		collector.WithTransport(e.transport)
	}

	var (
		mu        sync.Mutex
		urls      []models.BookURL
		pages     int
		responded bool
		fetchErr  error
	)

	collector.OnResponse(func(r *colly.Response) {
		mu.Lock()
		responded = true
		pages++
		mu.Unlock()
		e.metrics.IncPagesVisited()
	})

	collector.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		if fetchErr == nil {
			status := 0
			if r != nil {
				status = r.StatusCode
			}
			fetchErr = classifyFetch(err, status)
		}
		mu.Unlock()
	})

	collector.OnHTML("article.product_pod h3 a", func(el *colly.HTMLElement) {
		href := el.Attr("href")
		if href == "" {
			return
		}
		abs := el.Request.AbsoluteURL(href)

		mu.Lock()
		defer mu.Unlock()
		if _, dup := seen.Get(abs); dup {
			return
		}
		seen.Add(abs, struct{}{})
		urls = append(urls, models.BookURL(abs))
		e.metrics.IncDiscovered()
	})

	collector.OnHTML("li.next a", func(el *colly.HTMLElement) {
		mu.Lock()
		budgetLeft := pages < e.cfg.MaxPagesPerSource
		mu.Unlock()
		if !budgetLeft || ctx.Err() != nil {
			return
		}
		next := el.Request.AbsoluteURL(el.Attr("href"))
		if err := collector.Visit(next); err != nil && err != colly.ErrAlreadyVisited {
			slog.Debug("pagination visit failed",
				slog.String("url", next),
				slog.Any("error", err),
			)
		}
	})

	if err := collector.Visit(entry); err != nil {
		return nil, 0, err
	}
	collector.Wait()

	if !responded {
		if fetchErr != nil {
			return nil, 0, fetchErr
		}
		return nil, 0, fmt.Errorf("no response from source")
	}
	return urls, pages, nil
}
