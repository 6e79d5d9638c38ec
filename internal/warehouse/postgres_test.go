package warehouse

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/KevanReatha/flight-price-tracker/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestEmptyBatchesSkipTheWarehouse(t *testing.T) {
	// An empty batch must return 0 without touching the pool, so a nil pool
	// is safe here.
	s := &Store{logger: testLogger()}

	if n, err := s.UpsertQuotes(context.Background(), nil); n != 0 || err != nil {
		t.Errorf("UpsertQuotes(nil) = (%d, %v), want (0, nil)", n, err)
	}
	if n, err := s.AppendRaw(context.Background(), nil); n != 0 || err != nil {
		t.Errorf("AppendRaw(nil) = (%d, %v), want (0, nil)", n, err)
	}
}

// testStore connects to the database named by WAREHOUSE_TEST_DSN and resets
// the flight_quotes table. Tests using it are skipped when the variable is
// unset.
func testStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("WAREHOUSE_TEST_DSN")
	if dsn == "" {
		t.Skip("WAREHOUSE_TEST_DSN not set")
	}

	ctx := context.Background()
	s, err := New(ctx, dsn, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(s.Close)

	_, err = s.pool.Exec(ctx, `
		DROP TABLE IF EXISTS flight_quotes;
		CREATE TABLE flight_quotes (
			origin         CHAR(3)        NOT NULL,
			destination    CHAR(3)        NOT NULL,
			departure_date DATE           NOT NULL,
			quote_ts       TIMESTAMPTZ    NOT NULL,
			price          NUMERIC(10, 2) NOT NULL CHECK (price >= 0),
			stops          SMALLINT       CHECK (stops >= 0),
			airline        TEXT,
			source         TEXT           NOT NULL,
			cabin          CHAR(1)        NOT NULL DEFAULT 'M',
			PRIMARY KEY (origin, destination, departure_date, quote_ts, source)
		)`)
	if err != nil {
		t.Fatalf("Reset flight_quotes: %v", err)
	}
	return s
}

func TestUpsertQuotesIsIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	observed := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	departure := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	stops := 1
	batch := []models.QuoteRecord{
		{
			Origin: "MEL", Destination: "SYD",
			DepartureDate: departure, ObservedAt: observed,
			Price: decimal.NewFromFloat(129.50), Stops: &stops,
			Airline: "QF", Source: "tequila", Cabin: models.CabinEconomy,
		},
		{
			Origin: "MEL", Destination: "HKG",
			DepartureDate: departure, ObservedAt: observed,
			Price: decimal.NewFromFloat(480), Source: "tequila",
			Cabin: models.CabinEconomy,
		},
	}

	if n, err := s.UpsertQuotes(ctx, batch); err != nil || n != 2 {
		t.Fatalf("First upsert = (%d, %v), want (2, nil)", n, err)
	}

	// Re-running the same batch merges in place: same row count reported,
	// no extra rows.
	if n, err := s.UpsertQuotes(ctx, batch); err != nil || n != 2 {
		t.Fatalf("Second upsert = (%d, %v), want (2, nil)", n, err)
	}

	var rows int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM flight_quotes`).Scan(&rows); err != nil {
		t.Fatalf("Count rows: %v", err)
	}
	if rows != 2 {
		t.Fatalf("Expected 2 rows after duplicate batch, got %d", rows)
	}

	// A colliding record overwrites the non-key columns.
	batch[0].Price = decimal.NewFromFloat(99.00)
	batch[0].Airline = "JQ"
	if n, err := s.UpsertQuotes(ctx, batch); err != nil || n != 2 {
		t.Fatalf("Colliding upsert = (%d, %v), want (2, nil)", n, err)
	}

	var price decimal.Decimal
	var airline string
	err := s.pool.QueryRow(ctx, `
		SELECT price, airline FROM flight_quotes
		WHERE origin = 'MEL' AND destination = 'SYD'`).Scan(&price, &airline)
	if err != nil {
		t.Fatalf("Read back updated row: %v", err)
	}
	if !price.Equal(decimal.NewFromFloat(99.00)) {
		t.Errorf("Expected updated price 99.00, got %s", price)
	}
	if airline != "JQ" {
		t.Errorf("Expected updated airline JQ, got %q", airline)
	}

	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM flight_quotes`).Scan(&rows); err != nil {
		t.Fatalf("Count rows: %v", err)
	}
	if rows != 2 {
		t.Errorf("Expected the collision to update in place, got %d rows", rows)
	}
}
