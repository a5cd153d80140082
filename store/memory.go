package store

import (
	"context"
	"sync"

	"github.com/booksync/ingestor/models"
)

// Memory is an in-process sink for local runs and tests. Upserts are keyed
// the same way as the Postgres sink, so repeated delivery of a batch leaves
// the stored state unchanged.
type Memory struct {
	mu      sync.Mutex
	records map[string]*models.BookRecord
}

// NewMemory builds an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*models.BookRecord)}
}

// Upsert stores every record in the batch, replacing any prior record with
// the same key.
func (m *Memory) Upsert(_ context.Context, batch []*models.BookRecord) ([]models.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]models.UpsertResult, 0, len(batch))
	for _, rec := range batch {
		m.records[rec.Key] = rec
		results = append(results, models.UpsertResult{Key: rec.Key})
	}
	return results, nil
}

// Close is a no-op.
func (m *Memory) Close() {}

// Len returns the number of distinct stored records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Get returns the stored record for key, or nil.
func (m *Memory) Get(key string) *models.BookRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[key]
}
