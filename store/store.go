// Package store persists validated book records. Sinks upsert batches
// idempotently on the record key, so redelivering a batch after a transient
// failure never creates duplicates.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/booksync/ingestor/models"
)

// Sink writes a batch of validated records to the persistent store. The
// returned slice holds one result per input record, in input order. A
// non-nil error means the whole batch failed at the transport level and
// no per-record results are available. Batches carry no ordering meaning;
// completion order across pipeline workers is nondeterministic.
type Sink interface {
	Upsert(ctx context.Context, batch []*models.BookRecord) ([]models.UpsertResult, error)
	Close()
}

// StoreError wraps a store failure with a transient/permanent split.
// Transient failures (store unreachable, timeouts) are retried per batch;
// permanent ones are not.
type StoreError struct {
	Transient bool
	Err       error
}

func (e *StoreError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("store (%s): %v", kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a store failure worth retrying.
func IsTransient(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Transient
}
