package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/booksync/ingestor/models"
)

// Postgres upserts records into a single table keyed by record_key.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgres opens a connection pool against dsn and verifies reachability.
func NewPostgres(ctx context.Context, dsn, schema string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse store dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	if schema == "" {
		schema = "public"
	}
	return &Postgres{
		pool:  pool,
		table: fmt.Sprintf(`"%s".books`, schema),
	}, nil
}

// Upsert writes the batch with one statement per record via pgx batching.
// Per-record SQL failures land in the result slice; a connection-level
// failure aborts the batch with a transient StoreError so the caller can
// retry the whole batch.
func (p *Postgres) Upsert(ctx context.Context, batch []*models.BookRecord) ([]models.UpsertResult, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	b := &pgx.Batch{}
	for _, rec := range batch {
		b.Queue(upsertSQL(p.table),
			rec.Key, rec.Title, rec.Author, rec.Price, rec.Currency, rec.PriceKnown,
			string(rec.Availability), rec.UnitsAvailable, rec.Rating, rec.Category,
			rec.UPC, rec.Description, rec.ImageURL, rec.SourceURL, rec.ScrapedAt,
		)
	}

	br := p.pool.SendBatch(ctx, b)
	defer br.Close()

	results := make([]models.UpsertResult, 0, len(batch))
	for _, rec := range batch {
		_, err := br.Exec()
		if err != nil && isConnFailure(err) {
			return nil, &StoreError{Transient: true, Err: err}
		}
		if err != nil {
			err = &StoreError{Err: err}
		}
		results = append(results, models.UpsertResult{Key: rec.Key, Err: err})
	}
	return results, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func upsertSQL(table string) string {
	return `INSERT INTO ` + table + `
		(record_key, title, author, price, currency, price_known,
		 availability, units_available, rating, category,
		 upc, description, image_url, source_url, scraped_at,
		 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now(),now())
		ON CONFLICT (record_key) DO UPDATE SET
		 title = EXCLUDED.title,
		 author = EXCLUDED.author,
		 price = EXCLUDED.price,
		 currency = EXCLUDED.currency,
		 price_known = EXCLUDED.price_known,
		 availability = EXCLUDED.availability,
		 units_available = EXCLUDED.units_available,
		 rating = EXCLUDED.rating,
		 category = EXCLUDED.category,
		 upc = EXCLUDED.upc,
		 description = EXCLUDED.description,
		 image_url = EXCLUDED.image_url,
		 source_url = EXCLUDED.source_url,
		 scraped_at = EXCLUDED.scraped_at,
		 updated_at = now()`
}

func isConnFailure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	// pgx surfaces broken connections as closed-pool or net errors rather
	// than PgError values; a PgError means the server processed the
	// statement and rejected it, which is permanent for our purposes.
	var pgErr interface{ SQLState() string }
	return !errors.As(err, &pgErr)
}
