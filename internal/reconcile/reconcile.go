// Package reconcile joins screener rows with normalized quotes and flattens the
// result into a table for the sink.
package reconcile

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rewired-gh/comparisonsync/internal/logger"
	"github.com/rewired-gh/comparisonsync/internal/models"
)

// Join inner-joins comparisons and quotes on ticker == symbol. Rows without a
// partner on the other side are dropped. Output follows comparison order, then
// quote order; duplicate keys fan out into every pairing.
func Join(comparisons []models.ComparisonRecord, quotes []models.NormalizedQuote) []models.ReconciledRecord {
	bySymbol := make(map[string][]int, len(quotes))
	for i, q := range quotes {
		bySymbol[q.Symbol] = append(bySymbol[q.Symbol], i)
	}

	out := make([]models.ReconciledRecord, 0, min(len(comparisons), len(quotes)))
	for _, c := range comparisons {
		for _, i := range bySymbol[c.Ticker] {
			out = append(out, models.ReconciledRecord{Comparison: c, Quote: quotes[i]})
		}
	}
	return out
}

var (
	leadingColumns = []models.Column{
		{Name: "ticker", Kind: models.KindText},
		{Name: "exchange_name", Kind: models.KindText},
		{Name: "market_cap", Kind: models.KindFloat},
	}
	quoteColumns = []models.Column{
		{Name: "symbol", Kind: models.KindText},
		{Name: "ref_price", Kind: models.KindFloat},
		{Name: "ceiling", Kind: models.KindFloat},
		{Name: "floor", Kind: models.KindFloat},
		{Name: "accumulated_volume", Kind: models.KindFloat},
		{Name: "current_price", Kind: models.KindFloat},
		{Name: "price_change", Kind: models.KindFloat},
		{Name: "pct_price_change", Kind: models.KindFloat},
	}
)

// collisionSuffix renames a screener metric that shares its name with a fixed
// column, the way a left-hand merge suffix would.
const collisionSuffix = "_x"

type metricColumn struct {
	models.Column
	key string
}

// ToTable flattens reconciled records. Metric columns are the sorted union of
// metric keys; a metric missing from a record is NULL.
func ToTable(records []models.ReconciledRecord) models.Table {
	metricCols := metricColumns(records)

	cols := make([]models.Column, 0, len(leadingColumns)+len(metricCols)+len(quoteColumns))
	cols = append(cols, leadingColumns...)
	for _, mc := range metricCols {
		cols = append(cols, mc.Column)
	}
	cols = append(cols, quoteColumns...)

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		row := make([]any, 0, len(cols))
		row = append(row, r.Comparison.Ticker, r.Comparison.ExchangeName, r.Comparison.MarketCap)
		for _, mc := range metricCols {
			row = append(row, cellValue(r.Comparison.Metrics[mc.key], mc.Kind))
		}
		q := r.Quote
		row = append(row,
			q.Symbol, q.RefPrice, q.Ceiling, q.Floor, q.AccumulatedVolume,
			q.CurrentPrice, q.PriceChange, q.PctPriceChange,
		)
		rows = append(rows, row)
	}

	return models.Table{Columns: cols, Rows: rows}
}

// metricColumns infers one column per metric key: float when every non-nil
// value is numeric, bool when every non-nil value is boolean, text otherwise.
func metricColumns(records []models.ReconciledRecord) []metricColumn {
	type seen struct{ numeric, boolean, other bool }
	kinds := make(map[string]*seen)
	for _, r := range records {
		for key, value := range r.Comparison.Metrics {
			s, ok := kinds[key]
			if !ok {
				s = &seen{}
				kinds[key] = s
			}
			switch value.(type) {
			case nil:
			case float64, float32, int, int64, json.Number:
				s.numeric = true
			case bool:
				s.boolean = true
			default:
				s.other = true
			}
		}
	}

	names := make(map[string]string, len(kinds))
	for key := range kinds {
		name := key
		if isReserved(key) {
			name = key + collisionSuffix
			if _, taken := kinds[name]; taken || isReserved(name) {
				logger.Warn("Metric %q collides with a fixed column and %q is taken; dropped", key, name)
				continue
			}
			logger.Warn("Metric %q collides with a fixed column; stored as %q", key, name)
		}
		names[name] = key
	}

	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	cols := make([]metricColumn, len(ordered))
	for i, name := range ordered {
		key := names[name]
		s := kinds[key]
		kind := models.KindText
		switch {
		case s.numeric && !s.boolean && !s.other:
			kind = models.KindFloat
		case s.boolean && !s.numeric && !s.other:
			kind = models.KindBool
		}
		cols[i] = metricColumn{Column: models.Column{Name: name, Kind: kind}, key: key}
	}
	return cols
}

func isReserved(name string) bool {
	for _, c := range leadingColumns {
		if c.Name == name {
			return true
		}
	}
	for _, c := range quoteColumns {
		if c.Name == name {
			return true
		}
	}
	return false
}

func cellValue(v any, kind models.ColumnKind) any {
	if v == nil {
		return nil
	}
	switch kind {
	case models.KindFloat:
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		case int64:
			return float64(n)
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil
			}
			return f
		}
	case models.KindBool:
		if b, ok := v.(bool); ok {
			return b
		}
	}
	if s, ok := v.(string); ok {
		return s
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}
