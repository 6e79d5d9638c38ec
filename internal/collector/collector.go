// Package collector assembles one batch of quotes per pipeline run by
// iterating the route set across the forecast horizon.
package collector

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/KevanReatha/flight-price-tracker/internal/models"
	"github.com/KevanReatha/flight-price-tracker/internal/provider"
)

// Fetcher fetches the cheapest fare for one cell. Misses are reported via
// the bool, never as an error - a failing cell must not abort the batch.
type Fetcher interface {
	FetchMinFare(ctx context.Context, origin, destination string, departure time.Time) (*provider.Fare, *provider.Capture, bool)
}

// Batch is the output of one collection run.
type Batch struct {
	// Quotes holds one record per cell that produced a price, in route
	// order with dates ascending.
	Quotes []models.QuoteRecord

	// Raw holds the audit side-channel for successful cells, only
	// populated when raw capture is enabled.
	Raw []models.RawSnapshot

	// ObservedAt is the single UTC timestamp shared by every record.
	ObservedAt time.Time
}

// Config holds collector settings.
type Config struct {
	// HorizonDays is the number of future departure days to quote.
	HorizonDays int

	// Source tags every record with the provider name.
	Source string

	// CaptureRaw enables the raw snapshot side-channel.
	CaptureRaw bool
}

// Collector walks routes x horizon and gathers quotes. Retry for a cell is
// entirely the Fetcher's concern; the collector only skips misses.
type Collector struct {
	fetcher Fetcher
	routes  []models.Route
	cfg     Config
	logger  *logrus.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Collector over the given route set.
func New(fetcher Fetcher, routes []models.Route, cfg Config, logger *logrus.Logger) *Collector {
	return &Collector{
		fetcher: fetcher,
		routes:  routes,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Collect fetches every (route, departure date) cell sequentially and
// returns the accumulated batch. Departure dates run from run-date+1 to
// run-date+horizon. The only error is context cancellation; absent cells
// are skipped, not failed.
func (c *Collector) Collect(ctx context.Context) (*Batch, error) {
	observedAt := c.now().UTC()
	today := observedAt.Truncate(24 * time.Hour)

	batch := &Batch{ObservedAt: observedAt}
	cells := 0

	for _, route := range c.routes {
		for offset := 1; offset <= c.cfg.HorizonDays; offset++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			cells++

			departure := today.AddDate(0, 0, offset)
			fare, capture, found := c.fetcher.FetchMinFare(ctx, route.Origin, route.Destination, departure)
			if !found {
				continue
			}

			batch.Quotes = append(batch.Quotes, models.QuoteRecord{
				Origin:        route.Origin,
				Destination:   route.Destination,
				DepartureDate: departure,
				ObservedAt:    observedAt,
				Price:         fare.Price,
				Stops:         intPtr(fare.Stops),
				Airline:       fare.Airline,
				Source:        c.cfg.Source,
				Cabin:         models.CabinEconomy,
			})

			if c.cfg.CaptureRaw && capture != nil {
				params, err := json.Marshal(flatten(capture.Params))
				if err != nil {
					params = []byte("{}")
				}
				batch.Raw = append(batch.Raw, models.RawSnapshot{
					IngestedAt:    observedAt,
					RouteCode:     route.Code(),
					RequestParams: params,
					ResponseBody:  capture.Body,
				})
			}
		}
	}

	c.logger.WithFields(logrus.Fields{
		"cells":  cells,
		"quotes": len(batch.Quotes),
	}).Info("Collection complete")

	return batch, nil
}

func intPtr(n int) *int { return &n }

// flatten turns url.Values into a plain map for JSON storage; the search
// query never repeats a parameter.
func flatten(values map[string][]string) map[string]string {
	flat := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			flat[k] = v[0]
		}
	}
	return flat
}
