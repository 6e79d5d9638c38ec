// Package models defines the domain models shared across the pipeline.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CabinEconomy is the default cabin class marker used when the provider
// does not report one.
const CabinEconomy = "M"

// Route is an ordered (origin, destination) pair of IATA location codes.
type Route struct {
	Origin      string
	Destination string
}

// Code returns the route in "MEL-SYD" form, used to tag raw snapshots.
func (r Route) Code() string {
	return r.Origin + "-" + r.Destination
}

// ParseRoute parses a single "MEL-SYD" style pair.
func ParseRoute(s string) (Route, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Route{}, fmt.Errorf("invalid route %q: want ORIGIN-DESTINATION", s)
	}
	origin := strings.ToUpper(strings.TrimSpace(parts[0]))
	dest := strings.ToUpper(strings.TrimSpace(parts[1]))
	if len(origin) != 3 || len(dest) != 3 {
		return Route{}, fmt.Errorf("invalid route %q: codes must be 3 letters", s)
	}
	return Route{Origin: origin, Destination: dest}, nil
}

// ParseRoutes parses a comma-separated list of "MEL-SYD" pairs.
func ParseRoutes(s string) ([]Route, error) {
	var routes []Route
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		route, err := ParseRoute(part)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// QuoteRecord is one normalized price observation for a route and departure
// date. The natural key for upserts is (Origin, Destination, DepartureDate,
// ObservedAt, Source); everything else is overwritten on key collision.
type QuoteRecord struct {
	// Origin and Destination are 3-letter IATA codes.
	Origin      string
	Destination string

	// DepartureDate is the flight date the quote is for (date precision).
	DepartureDate time.Time

	// ObservedAt is when the quote was fetched. All records of one
	// collection run share a single UTC ObservedAt value.
	ObservedAt time.Time

	// Price is the lowest fare found, in the reporting currency.
	Price decimal.Decimal

	// Stops is the number of stops, or nil when unknown.
	Stops *int

	// Airline is the first carrier code of the itinerary, empty when unknown.
	Airline string

	// Source tags the provider the quote came from.
	Source string

	// Cabin is the cabin class, CabinEconomy when not reported.
	Cabin string
}

// RawSnapshot is the verbatim request/response of one provider call, kept
// only for audit. Append-only, never read back by the pipeline.
type RawSnapshot struct {
	IngestedAt    time.Time
	RouteCode     string
	RequestParams json.RawMessage
	ResponseBody  json.RawMessage
}
