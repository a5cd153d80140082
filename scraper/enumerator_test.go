package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/booksync/ingestor/config"
	"github.com/booksync/ingestor/models"
)

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(http.StatusOK, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

// buildListingPage renders one catalog page with bookCount detail links
// starting at firstID, plus an optional next-page link.
func buildListingPage(firstID, bookCount int, nextPage string) string {
	var b strings.Builder
	b.WriteString(`<html><body><section class="products">`)
	for i := 0; i < bookCount; i++ {
		id := firstID + i
		fmt.Fprintf(&b, `<article class="product_pod"><h3><a href="catalogue/book-%d/index.html" title="Book %d">Book %d</a></h3></article>`, id, id, id)
	}
	if nextPage != "" {
		fmt.Fprintf(&b, `<li class="next"><a href=%q>next</a></li>`, nextPage)
	}
	b.WriteString("</section></body></html>")
	return b.String()
}

func TestEnumeratePagination(t *testing.T) {
	cfg := config.DefaultConfig()
	base := "http://example.test/"

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", base, htmlResponder(buildListingPage(1, 5, "page-2.html")))
	transport.RegisterResponder("GET", base+"page-2.html", htmlResponder(buildListingPage(6, 5, "page-3.html")))
	transport.RegisterResponder("GET", base+"page-3.html", htmlResponder(buildListingPage(11, 5, "")))

	e := NewEnumerator(cfg, NewMetrics())
	e.WithTransport(transport)

	urls, warnings, err := e.Enumerate(context.Background(), []string{base})
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none", warnings)
	}
	if len(urls) != 15 {
		t.Fatalf("urls = %d, want 15", len(urls))
	}
	if urls[0] != models.BookURL("http://example.test/catalogue/book-1/index.html") {
		t.Fatalf("first url = %s", urls[0])
	}
}

func TestEnumerateRespectsPageBudget(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxPagesPerSource = 2
	base := "http://example.test/"

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", base, htmlResponder(buildListingPage(1, 5, "page-2.html")))
	transport.RegisterResponder("GET", base+"page-2.html", htmlResponder(buildListingPage(6, 5, "page-3.html")))
	transport.RegisterResponder("GET", base+"page-3.html", htmlResponder(buildListingPage(11, 5, "")))

	e := NewEnumerator(cfg, NewMetrics())
	e.WithTransport(transport)

	urls, _, err := e.Enumerate(context.Background(), []string{base})
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(urls) != 10 {
		t.Fatalf("urls = %d, want 10 (2 pages of 5)", len(urls))
	}
}

func TestEnumerateDeduplicatesAcrossSources(t *testing.T) {
	cfg := config.DefaultConfig()
	base := "http://example.test/"

	// Both listing pages link the same five books.
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", base+"fiction.html", htmlResponder(buildListingPage(1, 5, "")))
	transport.RegisterResponder("GET", base+"new.html", htmlResponder(buildListingPage(1, 5, "")))

	e := NewEnumerator(cfg, NewMetrics())
	e.WithTransport(transport)

	urls, warnings, err := e.Enumerate(context.Background(), []string{base + "fiction.html", base + "new.html"})
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none", warnings)
	}
	if len(urls) != 5 {
		t.Fatalf("urls = %d, want 5 after dedupe", len(urls))
	}
}

func TestEnumerateFirstSourceUnreachableIsFatal(t *testing.T) {
	cfg := config.DefaultConfig()
	base := "http://example.test/"

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", base+"down.html",
		httpmock.NewErrorResponder(errors.New("connection refused")))
	transport.RegisterResponder("GET", base+"up.html", htmlResponder(buildListingPage(1, 5, "")))

	e := NewEnumerator(cfg, NewMetrics())
	e.WithTransport(transport)

	_, _, err := e.Enumerate(context.Background(), []string{base + "down.html", base + "up.html"})
	var enumErr *EnumerationError
	if !errors.As(err, &enumErr) {
		t.Fatalf("expected EnumerationError, got %v", err)
	}
}

func TestEnumerateLaterSourceUnreachableIsWarning(t *testing.T) {
	cfg := config.DefaultConfig()
	base := "http://example.test/"

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", base+"up.html", htmlResponder(buildListingPage(1, 10, "")))
	transport.RegisterResponder("GET", base+"down.html",
		httpmock.NewErrorResponder(errors.New("connection refused")))
	transport.RegisterResponder("GET", base+"also-up.html", htmlResponder(buildListingPage(11, 5, "")))

	e := NewEnumerator(cfg, NewMetrics())
	e.WithTransport(transport)

	urls, warnings, err := e.Enumerate(context.Background(),
		[]string{base + "up.html", base + "down.html", base + "also-up.html"})
	if err != nil {
		t.Fatalf("enumerate should continue past a non-first failure: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
	if len(urls) != 15 {
		t.Fatalf("urls = %d, want 15 from the reachable sources", len(urls))
	}
}
