// Package parser turns fetched pages into raw fields and raw fields into
// validated records. Both operations are pure functions of their inputs,
// which is what makes them safe to call from concurrent workers.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/booksync/ingestor/models"
)

// ExtractError signals that a page is structurally not a book page.
type ExtractError struct {
	Field string
}

func (e ExtractError) Error() string {
	return fmt.Sprintf("extract: missing required field %q", e.Field)
}

var numberRe = regexp.MustCompile(`\d+\.\d+|\d+`)

// Extract parses one fetched detail page into raw field values. Optional
// fields that are absent on the page are left out of the map; a page without
// a product block (or without a title inside it) yields an ExtractError,
// which distinguishes "not a book page" from an upstream fetch failure.
func Extract(raw []byte) (models.RawFields, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}

	product := doc.Find(".product_main").First()
	if product.Length() == 0 {
		return nil, ExtractError{Field: "product_main"}
	}
	title := strings.TrimSpace(product.Find("h1").First().Text())
	if title == "" {
		return nil, ExtractError{Field: models.FieldTitle}
	}

	fields := models.RawFields{models.FieldTitle: title}

	setIfPresent(fields, models.FieldAuthor, product.Find(".author").First().Text())
	setIfPresent(fields, models.FieldPrice, product.Find("p.price_color").First().Text())

	if availability := strings.TrimSpace(product.Find(".availability").First().Text()); availability != "" {
		fields[models.FieldAvailability] = availability
		if units := numberRe.FindString(availability); units != "" {
			fields[models.FieldUnits] = units
		}
	}

	if ratingClass, ok := product.Find("p.star-rating").First().Attr("class"); ok {
		if parts := strings.Fields(ratingClass); len(parts) > 1 {
			fields[models.FieldRating] = parts[1]
		}
	}

	// Category sits third in the breadcrumb: Home / Books / <category> / <title>.
	crumbs := doc.Find(".breadcrumb li")
	if crumbs.Length() > 2 {
		setIfPresent(fields, models.FieldCategory, crumbs.Eq(2).Text())
	}

	setIfPresent(fields, models.FieldUPC, doc.Find("td").First().Text())
	setIfPresent(fields, models.FieldDescription, doc.Find("#product_description").NextFiltered("p").First().Text())

	if src, ok := doc.Find(".item.active img").First().Attr("src"); ok {
		setIfPresent(fields, models.FieldImageURL, src)
	}

	return fields, nil
}

func setIfPresent(fields models.RawFields, name, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		fields[name] = trimmed
	}
}

func parseDocument(raw []byte) (*goquery.Document, error) {
	enc, _, _ := charset.DetermineEncoding(raw, "")
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		if !utf8.Valid(raw) {
			return nil, err
		}
		decoded = raw
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(decoded))
}
