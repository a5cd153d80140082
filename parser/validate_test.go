package parser

import (
	"errors"
	"testing"

	"github.com/booksync/ingestor/models"
)

const sourceURL = "http://example.test/catalogue/book-1/index.html"

func validFields() models.RawFields {
	return models.RawFields{
		models.FieldTitle:        "A Light in the Attic",
		models.FieldAuthor:       "Shel Silverstein",
		models.FieldPrice:        "£51.77",
		models.FieldAvailability: "In stock (22 available)",
		models.FieldUnits:        "22",
		models.FieldRating:       "Three",
		models.FieldCategory:     "Poetry",
		models.FieldUPC:          "a897fe39b1053632",
	}
}

func TestValidateOK(t *testing.T) {
	record, err := Validate(validFields(), sourceURL)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if record.Key != "a897fe39b1053632" {
		t.Errorf("key = %q, want UPC", record.Key)
	}
	if record.Title != "A Light in the Attic" || record.Author != "Shel Silverstein" {
		t.Errorf("title/author = %q/%q", record.Title, record.Author)
	}
	if !record.PriceKnown || record.Price != 51.77 || record.Currency != "GBP" {
		t.Errorf("price = %v %s (known=%v), want 51.77 GBP", record.Price, record.Currency, record.PriceKnown)
	}
	if record.Availability != models.AvailabilityInStock {
		t.Errorf("availability = %q, want in_stock", record.Availability)
	}
	if record.UnitsAvailable != 22 {
		t.Errorf("units = %d, want 22", record.UnitsAvailable)
	}
	if record.Rating != 3 {
		t.Errorf("rating = %d, want 3", record.Rating)
	}
	if record.SourceURL != sourceURL {
		t.Errorf("source url = %q", record.SourceURL)
	}
}

func TestValidateMissingFields(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(models.RawFields)
		wantField string
	}{
		{
			name:      "missing title",
			mutate:    func(f models.RawFields) { delete(f, models.FieldTitle) },
			wantField: "title",
		},
		{
			name:      "blank title",
			mutate:    func(f models.RawFields) { f[models.FieldTitle] = "   " },
			wantField: "title",
		},
		{
			name:      "missing author",
			mutate:    func(f models.RawFields) { delete(f, models.FieldAuthor) },
			wantField: "author",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			tt.mutate(fields)

			_, err := Validate(fields, sourceURL)
			var missing MissingFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingFieldError, got %v", err)
			}
			if missing.Field != tt.wantField {
				t.Fatalf("field = %q, want %q", missing.Field, tt.wantField)
			}
			// The rule chain short-circuits: a missing field is never
			// reported as malformed.
			var malformed MalformedFieldError
			if errors.As(err, &malformed) {
				t.Fatalf("missing field reported as malformed: %v", err)
			}
		})
	}
}

func TestValidateMalformedPrice(t *testing.T) {
	tests := []struct {
		name  string
		price string
	}{
		{name: "not a number", price: "£abc"},
		{name: "negative", price: "-3.00"},
		{name: "trailing junk", price: "£10.00 approx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			fields[models.FieldPrice] = tt.price

			_, err := Validate(fields, sourceURL)
			var malformed MalformedFieldError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedFieldError, got %v", err)
			}
			if malformed.Field != "price" {
				t.Fatalf("field = %q, want price", malformed.Field)
			}
		})
	}
}

func TestValidateAbsentPriceIsUnknown(t *testing.T) {
	fields := validFields()
	delete(fields, models.FieldPrice)

	record, err := Validate(fields, sourceURL)
	if err != nil {
		t.Fatalf("absent price should not fail: %v", err)
	}
	if record.PriceKnown {
		t.Fatalf("price should be unknown")
	}
}

func TestParseAvailability(t *testing.T) {
	tests := []struct {
		input string
		want  models.Availability
	}{
		{input: "In stock (22 available)", want: models.AvailabilityInStock},
		{input: "IN STOCK", want: models.AvailabilityInStock},
		{input: "Out of stock", want: models.AvailabilityOutOfStock},
		{input: "out Of Stock", want: models.AvailabilityOutOfStock},
		{input: "Pre-order", want: models.AvailabilityPreOrder},
		{input: "  preorder  ", want: models.AvailabilityPreOrder},
		{input: "ships soonish", want: models.AvailabilityUnknown},
		{input: "", want: models.AvailabilityUnknown},
	}

	for _, tt := range tests {
		if got := ParseAvailability(tt.input); got != tt.want {
			t.Errorf("ParseAvailability(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestValidateUnknownAvailabilityKeepsRecord(t *testing.T) {
	fields := validFields()
	fields[models.FieldAvailability] = "maybe next week"

	record, err := Validate(fields, sourceURL)
	if err != nil {
		t.Fatalf("unknown availability should not drop the record: %v", err)
	}
	if record.Availability != models.AvailabilityUnknown {
		t.Fatalf("availability = %q, want unknown", record.Availability)
	}
}

func TestValidateKeyFallsBackToURL(t *testing.T) {
	fields := validFields()
	delete(fields, models.FieldUPC)

	record, err := Validate(fields, sourceURL)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if record.Key != sourceURL {
		t.Fatalf("key = %q, want source URL", record.Key)
	}
}

func TestValidateDeterministic(t *testing.T) {
	fields := validFields()
	delete(fields, models.FieldTitle)

	first := errString(t, fields)
	for i := 0; i < 10; i++ {
		if got := errString(t, fields); got != first {
			t.Fatalf("validation not deterministic: %q vs %q", first, got)
		}
	}
}

func errString(t *testing.T, fields models.RawFields) string {
	t.Helper()
	_, err := Validate(fields, sourceURL)
	if err == nil {
		t.Fatalf("expected error")
	}
	return err.Error()
}

func TestRatingToNumeric(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{input: "Zero", want: 0},
		{input: "One", want: 1},
		{input: "Three", want: 3},
		{input: "Five", want: 5},
		{input: " Four ", want: 4},
		{input: "Eleven", want: 0},
		{input: "", want: 0},
	}

	for _, tt := range tests {
		if got := RatingToNumeric(tt.input); got != tt.want {
			t.Errorf("RatingToNumeric(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
