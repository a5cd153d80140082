package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/booksync/ingestor/models"
)

// MissingFieldError reports a required field that was absent or blank.
type MissingFieldError struct {
	Field string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("validate: missing field %q", e.Field)
}

// MalformedFieldError reports a present field that failed to parse.
type MalformedFieldError struct {
	Field string
	Value string
}

func (e MalformedFieldError) Error() string {
	return fmt.Sprintf("validate: malformed field %q (value %q)", e.Field, e.Value)
}

var currencySymbols = map[string]string{
	"£": "GBP",
	"$": "USD",
	"€": "EUR",
}

// Validate converts raw fields into a BookRecord. Rules run in a fixed
// order and short-circuit on the first failure, so identical input always
// yields the identical result:
//
//  1. title and author must be present and non-blank after trimming,
//  2. price, if present, must parse as a non-negative number (an absent
//     price is recorded as unknown, not a failure),
//  3. availability maps case-insensitively into the known set; unrecognised
//     vocabulary degrades to unknown rather than dropping the record.
func Validate(fields models.RawFields, sourceURL string) (*models.BookRecord, error) {
	title := strings.TrimSpace(fields[models.FieldTitle])
	if title == "" {
		return nil, MissingFieldError{Field: models.FieldTitle}
	}
	author := strings.TrimSpace(fields[models.FieldAuthor])
	if author == "" {
		return nil, MissingFieldError{Field: models.FieldAuthor}
	}

	record := &models.BookRecord{
		Title:        title,
		Author:       author,
		Availability: models.AvailabilityUnknown,
		Category:     strings.TrimSpace(fields[models.FieldCategory]),
		UPC:          strings.TrimSpace(fields[models.FieldUPC]),
		Description:  strings.TrimSpace(fields[models.FieldDescription]),
		ImageURL:     strings.TrimSpace(fields[models.FieldImageURL]),
		SourceURL:    sourceURL,
		ScrapedAt:    time.Now().UTC(),
	}

	if raw, ok := fields[models.FieldPrice]; ok {
		price, currency, err := parsePrice(raw)
		if err != nil {
			return nil, MalformedFieldError{Field: models.FieldPrice, Value: raw}
		}
		record.Price = price
		record.Currency = currency
		record.PriceKnown = true
	}

	if raw, ok := fields[models.FieldAvailability]; ok {
		record.Availability = ParseAvailability(raw)
	}
	if raw, ok := fields[models.FieldUnits]; ok {
		if units, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && units >= 0 {
			record.UnitsAvailable = units
		}
	}
	record.Rating = RatingToNumeric(fields[models.FieldRating])

	record.Key = record.UPC
	if record.Key == "" {
		record.Key = sourceURL
	}
	return record, nil
}

func parsePrice(raw string) (float64, string, error) {
	trimmed := strings.TrimSpace(raw)
	currency := ""
	for symbol, code := range currencySymbols {
		if strings.Contains(trimmed, symbol) {
			currency = code
			trimmed = strings.ReplaceAll(trimmed, symbol, "")
			break
		}
	}
	trimmed = strings.TrimSpace(trimmed)

	price, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, "", err
	}
	if price < 0 {
		return 0, "", fmt.Errorf("negative price %f", price)
	}
	return price, currency, nil
}

// ParseAvailability maps raw availability text into the enumerated set.
// Matching is case-insensitive and tolerant of surrounding stock counts
// ("In stock (22 available)"). Unknown vocabulary maps to unknown.
func ParseAvailability(raw string) models.Availability {
	text := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(text, "pre-order"), strings.Contains(text, "preorder"):
		return models.AvailabilityPreOrder
	case strings.Contains(text, "out of stock"):
		return models.AvailabilityOutOfStock
	case strings.Contains(text, "in stock"):
		return models.AvailabilityInStock
	default:
		return models.AvailabilityUnknown
	}
}

// RatingToNumeric converts the textual rating to a numeric scale. Unknown
// words map to zero.
func RatingToNumeric(rating string) int {
	switch strings.TrimSpace(rating) {
	case "Zero":
		return 0
	case "One":
		return 1
	case "Two":
		return 2
	case "Three":
		return 3
	case "Four":
		return 4
	case "Five":
		return 5
	default:
		return 0
	}
}
