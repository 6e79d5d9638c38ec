// Package pipeline orchestrates one ingestion run: breaker check, collect,
// upsert, then the downstream transform. Failure policy is the heart of it -
// transient warehouse errors are retried with backoff, authentication and
// lockout errors trip the persisted circuit breaker so an unattended
// scheduler cannot lock the warehouse account by retrying bad credentials.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/KevanReatha/flight-price-tracker/internal/breaker"
	"github.com/KevanReatha/flight-price-tracker/internal/collector"
	"github.com/KevanReatha/flight-price-tracker/internal/models"
	"github.com/KevanReatha/flight-price-tracker/internal/transform"
	"github.com/KevanReatha/flight-price-tracker/internal/warehouse"
)

// ErrNoRoutes means neither configuration nor the reference table produced
// a usable route list.
var ErrNoRoutes = errors.New("no usable route list configured")

// Writer is the warehouse surface the pipeline needs.
type Writer interface {
	UpsertQuotes(ctx context.Context, quotes []models.QuoteRecord) (int, error)
	AppendRaw(ctx context.Context, snapshots []models.RawSnapshot) (int, error)
	SupportedRoutes(ctx context.Context) ([]models.Route, error)
	Close()
}

// WriterFactory dials the warehouse. It is a factory rather than a handle
// because connecting is itself the risky operation: it happens only after
// the breaker check, once per ingestion attempt.
type WriterFactory func(ctx context.Context) (Writer, error)

// Collector gathers one batch of quotes.
type Collector interface {
	Collect(ctx context.Context) (*collector.Batch, error)
}

// CollectorFactory builds a collector over the resolved route set.
type CollectorFactory func(routes []models.Route) Collector

// Config holds orchestrator settings.
type Config struct {
	// StaticRoutes is the configured route list. When empty, the
	// supported_routes reference table is consulted instead.
	StaticRoutes []models.Route

	// RetryDelays are the waits between ingestion attempts; the task runs
	// at most len(RetryDelays)+1 times.
	RetryDelays []time.Duration
}

// Pipeline runs the ingestion-and-transform state machine once per
// invocation.
type Pipeline struct {
	newWriter    WriterFactory
	newCollector CollectorFactory
	breaker      breaker.Store
	transformer  transform.Runner
	classifier   *warehouse.Classifier
	cfg          Config
	logger       *logrus.Logger
}

// New wires the orchestrator. All collaborators are injected.
func New(
	newWriter WriterFactory,
	newCollector CollectorFactory,
	breakerStore breaker.Store,
	transformer transform.Runner,
	classifier *warehouse.Classifier,
	cfg Config,
	logger *logrus.Logger,
) *Pipeline {
	return &Pipeline{
		newWriter:    newWriter,
		newCollector: newCollector,
		breaker:      breakerStore,
		transformer:  transformer,
		classifier:   classifier,
		cfg:          cfg,
		logger:       logger,
	}
}

// Run executes one scheduled tick. It never panics across attempts and
// always returns a Report describing what happened; Report.Err carries the
// failure for non-success outcomes.
func (p *Pipeline) Run(ctx context.Context) (report Report) {
	report.Started = time.Now().UTC()
	defer func() { report.Finished = time.Now().UTC() }()

	open, err := p.breaker.IsOpen()
	if err != nil {
		report.Outcome = OutcomeFailed
		report.Err = fmt.Errorf("read breaker state: %w", err)
		return report
	}
	if open {
		p.logger.Warn("Circuit breaker OPEN - skipping run to avoid warehouse lockout")
		report.Outcome = OutcomeSkipped
		return report
	}

	ingestErr := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		report.Attempts++
		quotes, raw, err := p.ingestOnce(ctx)
		if err != nil {
			kind := p.classifier.Kind(err)
			p.logger.WithFields(logrus.Fields{
				"attempt": report.Attempts,
				"kind":    kind.String(),
			}).Errorf("Ingestion attempt failed: %v", err)
			if kind == warehouse.KindTransient {
				return retry.RetryableError(err)
			}
			return err
		}
		report.QuotesWritten = quotes
		report.RawWritten = raw
		return nil
	})

	if ingestErr != nil {
		report.Err = ingestErr
		report.Kind = p.classifier.Kind(ingestErr)
		if report.Kind == warehouse.KindAuth {
			p.logger.Error("Auth/lockout failure detected - opening circuit breaker")
			if err := p.breaker.Open(ingestErr.Error()); err != nil {
				p.logger.Errorf("Failed to open breaker: %v", err)
			}
			report.Outcome = OutcomeFailedHard
		} else {
			report.Outcome = OutcomeFailed
		}
		return report
	}

	// Success clears any stale open marker left by a previous failure.
	if err := p.breaker.Close(); err != nil {
		p.logger.Errorf("Failed to close breaker: %v", err)
	}

	p.logger.WithField("rows", report.QuotesWritten).Info("Ingestion complete")

	if err := p.transformer.Run(ctx); err != nil {
		// Ingested rows stay committed; the transform is fixed and rerun
		// on its own.
		report.Outcome = OutcomeTransformFailed
		report.Err = err
		return report
	}

	report.Outcome = OutcomeSucceeded
	return report
}

// ingestOnce performs one full collect-and-write attempt and returns the
// quote and raw row counts.
func (p *Pipeline) ingestOnce(ctx context.Context) (int, int, error) {
	writer, err := p.newWriter(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer writer.Close()

	routes := p.cfg.StaticRoutes
	if len(routes) == 0 {
		routes, err = writer.SupportedRoutes(ctx)
		if err != nil {
			return 0, 0, err
		}
	}
	if len(routes) == 0 {
		return 0, 0, ErrNoRoutes
	}

	batch, err := p.newCollector(routes).Collect(ctx)
	if err != nil {
		return 0, 0, err
	}

	quotes, err := writer.UpsertQuotes(ctx, batch.Quotes)
	if err != nil {
		return 0, 0, err
	}

	// Raw capture is best-effort audit data: a failed side write must not
	// fail an otherwise committed ingestion.
	raw, err := writer.AppendRaw(ctx, batch.Raw)
	if err != nil {
		p.logger.Warnf("Raw snapshot write failed (ignored): %v", err)
	}

	return quotes, raw, nil
}

// backoff walks the configured delay sequence, then stops.
func (p *Pipeline) backoff() retry.Backoff {
	delays := p.cfg.RetryDelays
	next := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		if next >= len(delays) {
			return 0, true
		}
		delay := delays[next]
		next++
		return delay, false
	})
}
