// Package normalize derives current price, price change and percent change from
// raw price board rows.
package normalize

import (
	"database/sql"
	"math"

	"github.com/rewired-gh/comparisonsync/internal/logger"
	"github.com/rewired-gh/comparisonsync/internal/models"
)

// minorUnitScale converts provider prices (VND) into thousands of VND.
const minorUnitScale = 1e-3

// Round2 rounds to two decimals, half to even.
func Round2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}

// Quotes normalizes a batch. The session is decided once per batch from the
// presence of the match price column, never per row.
func Quotes(batch models.QuoteBatch) models.NormalizedBatch {
	if batch.HasMatchPrice {
		return Live(batch.Records)
	}
	return Closed(batch.Records)
}

// Live derives prices from the match price. A zero reference price leaves the
// percent change NULL; a row without its own match price is NULL throughout.
func Live(records []models.QuoteRecord) models.NormalizedBatch {
	out := models.NormalizedBatch{
		Session: models.SessionLive,
		Quotes:  make([]models.NormalizedQuote, 0, len(records)),
	}

	var zeroRef, noMatch int
	for _, r := range records {
		q := base(r)
		if r.MatchPrice == nil {
			noMatch++
			out.Quotes = append(out.Quotes, q)
			continue
		}

		change := *r.MatchPrice - r.RefPrice
		q.CurrentPrice = valid(Round2(*r.MatchPrice * minorUnitScale))
		q.PriceChange = valid(Round2(change * minorUnitScale))
		if r.RefPrice == 0 {
			zeroRef++
		} else {
			q.PctPriceChange = valid(Round2(change / r.RefPrice * 100))
		}
		out.Quotes = append(out.Quotes, q)
	}

	if zeroRef > 0 {
		logger.Warn("%d quotes have a zero reference price; percent change left empty", zeroRef)
	}
	if noMatch > 0 {
		logger.Warn("%d quotes have no match price in a live session; prices left empty", noMatch)
	}
	return out
}

// Closed uses the reference price as the current price with no change.
func Closed(records []models.QuoteRecord) models.NormalizedBatch {
	out := models.NormalizedBatch{
		Session: models.SessionClosed,
		Quotes:  make([]models.NormalizedQuote, 0, len(records)),
	}
	for _, r := range records {
		q := base(r)
		q.CurrentPrice = valid(Round2(r.RefPrice * minorUnitScale))
		q.PriceChange = valid(0)
		q.PctPriceChange = valid(0)
		out.Quotes = append(out.Quotes, q)
	}
	return out
}

func base(r models.QuoteRecord) models.NormalizedQuote {
	return models.NormalizedQuote{
		Symbol:            r.Symbol,
		RefPrice:          r.RefPrice,
		Ceiling:           r.Ceiling,
		Floor:             r.Floor,
		AccumulatedVolume: r.AccumulatedVolume,
	}
}

func valid(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: true}
}
