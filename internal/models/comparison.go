// Package models defines the core domain entities: screener rows, quotes, and the joined table.
package models

import (
	"errors"
)

// ComparisonRecord is one screener row: a ticker that passed the exchange and market-cap filter
// together with the provider's comparison metrics.
type ComparisonRecord struct {
	Ticker       string         `json:"ticker"`
	ExchangeName string         `json:"exchange_name"`
	MarketCap    float64        `json:"market_cap"`
	Metrics      map[string]any `json:"metrics,omitempty"`
}

// Validate checks comparison record field constraints.
func (c *ComparisonRecord) Validate() error {
	if c.Ticker == "" {
		return errors.New("ticker must not be empty")
	}
	if c.MarketCap < 0 {
		return errors.New("market cap must not be negative")
	}
	return nil
}

// ReconciledRecord is a comparison record joined with the normalized quote of the same ticker.
type ReconciledRecord struct {
	Comparison ComparisonRecord
	Quote      NormalizedQuote
}
