// Package models defines data structures shared across the ingest pipeline.
package models

import "time"

// BookURL references one book's detail page. Produced by the enumerator,
// dispatched to exactly one pipeline worker.
type BookURL string

// RawFields maps field names to raw extracted strings. Optional fields that
// are absent on the page are simply missing keys.
type RawFields map[string]string

// Field names recognised in RawFields.
const (
	FieldTitle        = "title"
	FieldAuthor       = "author"
	FieldPrice        = "price"
	FieldAvailability = "availability"
	FieldUnits        = "units_available"
	FieldRating       = "rating"
	FieldCategory     = "category"
	FieldUPC          = "upc"
	FieldDescription  = "description"
	FieldImageURL     = "image_url"
)

// Availability is the enumerated stock status of a record.
type Availability string

const (
	AvailabilityInStock    Availability = "in_stock"
	AvailabilityOutOfStock Availability = "out_of_stock"
	AvailabilityPreOrder   Availability = "pre_order"
	AvailabilityUnknown    Availability = "unknown"
)

// BookRecord is a validated book. Key is never empty: the UPC when the page
// provides one, otherwise the source URL. Immutable once built.
type BookRecord struct {
	Key            string       `json:"key"`
	Title          string       `json:"title"`
	Author         string       `json:"author"`
	Price          float64      `json:"price"`
	Currency       string       `json:"currency"`
	PriceKnown     bool         `json:"price_known"`
	Availability   Availability `json:"availability"`
	UnitsAvailable int          `json:"units_available"`
	Rating         int          `json:"rating"`
	Category       string       `json:"category"`
	UPC            string       `json:"upc"`
	Description    string       `json:"description"`
	ImageURL       string       `json:"image_url"`
	SourceURL      string       `json:"source_url"`
	ScrapedAt      time.Time    `json:"scraped_at"`
}

// UpsertResult reports the outcome of persisting one record. Err is nil on
// success.
type UpsertResult struct {
	Key string
	Err error
}
