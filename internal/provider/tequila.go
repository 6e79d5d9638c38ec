// Package provider implements the flight-search API client.
// It fetches the cheapest quote for one (origin, destination, departure date)
// cell and degrades to "no data" on every failure mode: the caller never sees
// an error, only an absent result.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/KevanReatha/flight-price-tracker/configs"
)

const dateFormat = "02/01/2006"

// Fare is the normalized result of one successful search.
type Fare struct {
	// Price is the lowest fare in the configured reporting currency.
	Price decimal.Decimal

	// Stops is the number of stops: len(route segments) - 1, floored at 0.
	Stops int

	// Airline is the first carrier code of the itinerary, empty when the
	// provider reported none.
	Airline string
}

// Capture holds the verbatim request parameters and response body of a
// successful call, for the raw audit side-channel.
type Capture struct {
	Params url.Values
	Body   json.RawMessage
}

type searchResponse struct {
	Data []struct {
		Price    float64           `json:"price"`
		Route    []json.RawMessage `json:"route"`
		Airlines []string          `json:"airlines"`
	} `json:"data"`
}

// Client calls the Tequila search endpoint. It is stateless apart from the
// shared rate limiter, so one Client serves a whole collection run.
type Client struct {
	cfg        configs.ProviderConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// NewClient creates a search client. The rate limiter bounds outbound
// requests across retries as well as across cells - the provider enforces
// its own limits, so staying under them is a correctness requirement.
func NewClient(cfg configs.ProviderConfig, logger *logrus.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// FetchMinFare returns the cheapest fare for one cell, the raw capture of the
// call, and whether anything was found. It retries transient provider
// failures (429, 5xx, network errors) with a bounded linear backoff and
// returns found=false once attempts are exhausted. A missing API key, an
// empty result set, or a non-retryable status are immediate misses.
func (c *Client) FetchMinFare(ctx context.Context, origin, destination string, departure time.Time) (*Fare, *Capture, bool) {
	if c.cfg.APIKey == "" {
		return nil, nil, false
	}

	params := url.Values{}
	params.Set("fly_from", origin)
	params.Set("fly_to", destination)
	params.Set("date_from", departure.Format(dateFormat))
	params.Set("date_to", departure.Format(dateFormat))
	params.Set("curr", c.cfg.Currency)
	params.Set("one_for_city", "1")
	params.Set("limit", "1")
	params.Set("sort", "price")
	params.Set("adults", "1")

	log := c.logger.WithFields(logrus.Fields{
		"route":     origin + "-" + destination,
		"departure": departure.Format("2006-01-02"),
	})

	body, ok := c.search(ctx, params, log)
	if !ok {
		return nil, nil, false
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Warnf("Unparseable search response: %v", err)
		return nil, nil, false
	}
	if len(resp.Data) == 0 {
		log.Debug("No itineraries for cell")
		return nil, nil, false
	}

	first := resp.Data[0]
	stops := len(first.Route) - 1
	if stops < 0 {
		stops = 0
	}
	airline := ""
	if len(first.Airlines) > 0 {
		airline = first.Airlines[0]
	}

	fare := &Fare{
		Price:   decimal.NewFromFloat(first.Price),
		Stops:   stops,
		Airline: airline,
	}
	capture := &Capture{Params: params, Body: body}
	return fare, capture, true
}

// search performs the HTTP call with the retry loop. Backoff is linear
// (attempt * RetryDelay) and capped by MaxAttempts.
func (c *Client) search(ctx context.Context, params url.Values, log *logrus.Entry) ([]byte, bool) {
	searchURL := c.cfg.BaseURL + "/v2/search?" + params.Encode()

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, false
		}

		body, retryable, err := c.doRequest(ctx, searchURL)
		if err == nil {
			return body, true
		}
		if !retryable {
			log.Warnf("Skipping cell: %v", err)
			return nil, false
		}
		if attempt == c.cfg.MaxAttempts {
			log.Warnf("Skipping cell after %d attempts: %v", attempt, err)
			return nil, false
		}

		delay := time.Duration(attempt) * c.cfg.RetryDelay
		log.Warnf("Attempt %d/%d failed: %v. Retrying in %v...", attempt, c.cfg.MaxAttempts, err, delay)

		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(delay):
		}
	}

	return nil, false
}

// doRequest performs one attempt. The second return value says whether the
// failure is worth retrying.
func (c *Client) doRequest(ctx context.Context, searchURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("status %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("status %d", resp.StatusCode)
	}
}
