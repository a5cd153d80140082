package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/booksync/ingestor/models"
)

func sampleBatch() []*models.BookRecord {
	return []*models.BookRecord{
		{Key: "upc-1", Title: "Book 1", Author: "Author", PriceKnown: true, Price: 10},
		{Key: "upc-2", Title: "Book 2", Author: "Author", PriceKnown: true, Price: 20},
		{Key: "upc-3", Title: "Book 3", Author: "Author"},
	}
}

func TestMemoryUpsertIdempotent(t *testing.T) {
	sink := NewMemory()
	batch := sampleBatch()

	first, err := sink.Upsert(context.Background(), batch)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := sink.Upsert(context.Background(), batch)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if len(first) != len(batch) || len(second) != len(batch) {
		t.Fatalf("results = %d/%d, want one per record", len(first), len(second))
	}
	for i, res := range second {
		if res.Err != nil {
			t.Errorf("record %d: %v", i, res.Err)
		}
		if res.Key != batch[i].Key {
			t.Errorf("result %d key = %q, want %q", i, res.Key, batch[i].Key)
		}
	}

	// Delivering the same batch twice must leave the same stored state.
	if sink.Len() != len(batch) {
		t.Fatalf("stored = %d, want %d (no duplicates)", sink.Len(), len(batch))
	}
}

func TestMemoryUpsertReplacesByKey(t *testing.T) {
	sink := NewMemory()
	if _, err := sink.Upsert(context.Background(), sampleBatch()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	updated := []*models.BookRecord{{Key: "upc-1", Title: "Book 1, 2nd ed.", Author: "Author"}}
	if _, err := sink.Upsert(context.Background(), updated); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if got := sink.Get("upc-1"); got == nil || got.Title != "Book 1, 2nd ed." {
		t.Fatalf("record not replaced: %+v", got)
	}
	if sink.Len() != 3 {
		t.Fatalf("stored = %d, want 3", sink.Len())
	}
}

func TestStoreErrorTransient(t *testing.T) {
	transient := &StoreError{Transient: true, Err: errors.New("connection reset")}
	if !IsTransient(transient) {
		t.Fatalf("transient store error not detected")
	}
	permanent := &StoreError{Err: errors.New("constraint violation")}
	if IsTransient(permanent) {
		t.Fatalf("permanent store error reported transient")
	}
	if IsTransient(errors.New("unrelated")) {
		t.Fatalf("plain errors are not transient store failures")
	}

	wrapped := &StoreError{Transient: true, Err: context.DeadlineExceeded}
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Fatalf("expected unwrap to reach cause")
	}
}

func TestUpsertSQLShape(t *testing.T) {
	sql := upsertSQL(`"public".books`)
	for _, fragment := range []string{
		`INSERT INTO "public".books`,
		"ON CONFLICT (record_key) DO UPDATE",
		"updated_at = now()",
	} {
		if !strings.Contains(sql, fragment) {
			t.Errorf("upsert SQL missing %q", fragment)
		}
	}
}
