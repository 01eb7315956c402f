package models

import (
	"database/sql"
	"errors"
)

// QuoteRecord is one price board row as returned by the provider.
// Prices are in minor currency units (VND), as published.
type QuoteRecord struct {
	Symbol            string   `json:"symbol"`
	RefPrice          float64  `json:"ref_price"`
	MatchPrice        *float64 `json:"match_price,omitempty"`
	Ceiling           float64  `json:"ceiling"`
	Floor             float64  `json:"floor"`
	AccumulatedVolume float64  `json:"accumulated_volume"`
}

// Validate checks quote record field constraints.
func (q *QuoteRecord) Validate() error {
	if q.Symbol == "" {
		return errors.New("symbol must not be empty")
	}
	if q.RefPrice < 0 {
		return errors.New("reference price must not be negative")
	}
	return nil
}

// QuoteBatch is a price board response. HasMatchPrice describes the batch schema:
// the match price column is published for the whole session or not at all.
type QuoteBatch struct {
	Records       []QuoteRecord
	HasMatchPrice bool
}

// Session is the market session a quote batch was normalized under.
type Session int

const (
	SessionClosed Session = iota
	SessionLive
)

func (s Session) String() string {
	if s == SessionLive {
		return "live"
	}
	return "closed"
}

// NormalizedQuote carries prices in major currency units. Invalid fields are
// written as NULL.
type NormalizedQuote struct {
	Symbol            string
	RefPrice          float64
	Ceiling           float64
	Floor             float64
	AccumulatedVolume float64
	CurrentPrice      sql.NullFloat64
	PriceChange       sql.NullFloat64
	PctPriceChange    sql.NullFloat64
}

// NormalizedBatch is the output of quote normalization, tagged with the session
// that decided how it was derived.
type NormalizedBatch struct {
	Session Session
	Quotes  []NormalizedQuote
}
