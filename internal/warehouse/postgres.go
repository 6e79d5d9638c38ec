// Package warehouse persists parsed quotes and raw provider snapshots to
// Postgres and classifies persistence failures for the orchestrator.
package warehouse

import (
	"context"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/KevanReatha/flight-price-tracker/internal/models"
)

const upsertQuoteSQL = `
	INSERT INTO flight_quotes (
		origin, destination, departure_date, quote_ts,
		price, stops, airline, source, cabin
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (origin, destination, departure_date, quote_ts, source)
	DO UPDATE SET
		price   = EXCLUDED.price,
		stops   = EXCLUDED.stops,
		airline = EXCLUDED.airline,
		cabin   = EXCLUDED.cabin
`

const appendRawSQL = `
	INSERT INTO raw_quotes (ingested_at, route_code, request_params, response_body)
	VALUES ($1, $2, $3, $4)
`

// Store is the Postgres-backed warehouse writer.
type Store struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

// New opens a connection pool and verifies connectivity with a ping.
// Authentication failures surface here as classifiable pgconn errors -
// callers must not retry those blindly.
func New(ctx context.Context, dsn string, logger *logrus.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse warehouse DSN: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open warehouse pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

// UpsertQuotes merges a batch of quote records on the natural key
// (origin, destination, departure_date, quote_ts, source), overwriting
// price, stops, airline, and cabin on collision. The whole batch commits in
// one transaction, so re-running an ingestion window is safe. An empty batch
// returns 0 without touching the pool.
func (s *Store) UpsertQuotes(ctx context.Context, quotes []models.QuoteRecord) (int, error) {
	if len(quotes) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin quote upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, q := range quotes {
		batch.Queue(upsertQuoteSQL,
			q.Origin, q.Destination, q.DepartureDate, q.ObservedAt,
			q.Price, q.Stops, nullIfEmpty(q.Airline), q.Source, q.Cabin,
		)
	}

	results := tx.SendBatch(ctx, batch)
	written := 0
	for range quotes {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return 0, fmt.Errorf("upsert quote: %w", err)
		}
		written += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close upsert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit quote upsert: %w", err)
	}

	s.logger.WithField("rows", written).Info("Quote batch upserted")
	return written, nil
}

// AppendRaw inserts raw provider snapshots append-only. There is no
// idempotence guarantee: duplicates are harmless audit data. The write is
// independent of the quote transaction.
func (s *Store) AppendRaw(ctx context.Context, snapshots []models.RawSnapshot) (int, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(appendRawSQL, snap.IngestedAt, snap.RouteCode, snap.RequestParams, snap.ResponseBody)
	}

	results := s.pool.SendBatch(ctx, batch)
	written := 0
	for range snapshots {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return written, fmt.Errorf("append raw snapshot: %w", err)
		}
		written++
	}
	if err := results.Close(); err != nil {
		return written, fmt.Errorf("close raw batch: %w", err)
	}

	return written, nil
}

// SupportedRoutes reads the route reference table, used when no static
// route list is configured.
func (s *Store) SupportedRoutes(ctx context.Context) ([]models.Route, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT origin, destination FROM supported_routes ORDER BY origin, destination`)
	if err != nil {
		return nil, fmt.Errorf("query supported routes: %w", err)
	}
	defer rows.Close()

	var routes []models.Route
	for rows.Next() {
		var r models.Route
		if err := rows.Scan(&r.Origin, &r.Destination); err != nil {
			return nil, fmt.Errorf("scan supported route: %w", err)
		}
		routes = append(routes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read supported routes: %w", err)
	}
	return routes, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
