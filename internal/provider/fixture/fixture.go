// Package fixture serves screener and quote data from a JSON document, for
// deterministic runs without network access.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/rewired-gh/comparisonsync/internal/models"
	"github.com/rewired-gh/comparisonsync/internal/provider"
)

// Document is the on-disk fixture format. Rows use snake_case provider column names.
// A quote row without a match_price key contributes no match price column.
type Document struct {
	Screener []map[string]any `json:"screener"`
	Quotes   []map[string]any `json:"quotes"`
}

// Provider implements provider.Screener and provider.QuoteSource over a Document.
type Provider struct {
	doc Document
}

var (
	_ provider.Screener    = (*Provider)(nil)
	_ provider.QuoteSource = (*Provider)(nil)
)

// New creates a fixture provider over doc.
func New(doc Document) *Provider {
	return &Provider{doc: doc}
}

// Load reads a fixture document from path.
func Load(path string) (*Provider, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return New(doc), nil
}

// Screen applies filter to the fixture screener rows the way the remote screener would.
func (p *Provider) Screen(ctx context.Context, filter provider.Filter) ([]models.ComparisonRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, provider.Remote("screener", err)
	}

	var records []models.ComparisonRecord
	for i, row := range p.doc.Screener {
		record := models.ComparisonRecord{Metrics: make(map[string]any)}
		var fieldErr error
		for key, value := range row {
			switch {
			case strings.HasPrefix(key, "price_vs"):
			case key == "ticker":
				record.Ticker, _ = value.(string)
			case key == "exchange_name":
				record.ExchangeName, _ = value.(string)
			case key == "market_cap":
				if f, ok := value.(float64); ok {
					record.MarketCap = f
				} else if value != nil {
					fieldErr = fmt.Errorf("market_cap is not a number: %v", value)
				}
			default:
				record.Metrics[key] = value
			}
		}
		if fieldErr != nil {
			return nil, provider.Remote("screener", fmt.Errorf("fixture row %d: %w", i, fieldErr))
		}
		if err := record.Validate(); err != nil {
			return nil, provider.Remote("screener", fmt.Errorf("fixture row %d: %w", i, err))
		}

		if len(filter.Exchanges) > 0 && !slices.Contains(filter.Exchanges, record.ExchangeName) {
			continue
		}
		if record.MarketCap < filter.MarketCapMin || record.MarketCap > filter.MarketCapMax {
			continue
		}
		records = append(records, record)
		if filter.Limit > 0 && len(records) == filter.Limit {
			break
		}
	}
	return records, nil
}

// Quotes returns the fixture quote rows whose symbol is in tickers, in fixture order.
func (p *Provider) Quotes(ctx context.Context, tickers []string) (models.QuoteBatch, error) {
	if err := ctx.Err(); err != nil {
		return models.QuoteBatch{}, provider.Remote("quotes", err)
	}

	wanted := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		wanted[t] = struct{}{}
	}

	var batch models.QuoteBatch
	for i, row := range p.doc.Quotes {
		symbol, _ := row["symbol"].(string)
		if _, ok := wanted[symbol]; !ok {
			continue
		}

		record := models.QuoteRecord{
			Symbol:            symbol,
			RefPrice:          floatField(row, "ref_price"),
			Ceiling:           floatField(row, "ceiling"),
			Floor:             floatField(row, "floor"),
			AccumulatedVolume: floatField(row, "accumulated_volume"),
		}
		if _, ok := row["ref_price"].(float64); !ok {
			return models.QuoteBatch{}, provider.Remote("quotes", fmt.Errorf("fixture quote %d: missing ref_price", i))
		}
		if v, ok := row["match_price"]; ok {
			batch.HasMatchPrice = true
			if f, ok := v.(float64); ok {
				record.MatchPrice = &f
			}
		}
		if err := record.Validate(); err != nil {
			return models.QuoteBatch{}, provider.Remote("quotes", fmt.Errorf("fixture quote %d: %w", i, err))
		}
		batch.Records = append(batch.Records, record)
	}
	return batch, nil
}

func floatField(row map[string]any, key string) float64 {
	f, _ := row[key].(float64)
	return f
}
