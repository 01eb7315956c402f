// Package provider defines the market data capabilities the pipeline consumes.
package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rewired-gh/comparisonsync/internal/models"
)

//go:generate mockgen -source=provider.go -destination=mock/mock_provider.go -package=mock

// Filter is the static screener filter.
type Filter struct {
	Exchanges    []string
	MarketCapMin float64
	MarketCapMax float64
	Limit        int
	Lang         string
}

// Screener returns the filtered universe of tickers with their comparison metrics.
type Screener interface {
	Screen(ctx context.Context, filter Filter) ([]models.ComparisonRecord, error)
}

// QuoteSource returns price board rows for as many of the given tickers as it has data for.
type QuoteSource interface {
	Quotes(ctx context.Context, tickers []string) (models.QuoteBatch, error)
}

// HTTPClient describes an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Live combines a screener and a quote source from different upstreams.
type Live struct {
	Screener
	QuoteSource
}

// RemoteDataError reports an unreachable, failing or malformed provider response.
type RemoteDataError struct {
	Op  string
	Err error
}

func (e *RemoteDataError) Error() string {
	return fmt.Sprintf("remote data error (%s): %v", e.Op, e.Err)
}

func (e *RemoteDataError) Unwrap() error { return e.Err }

// Remote wraps err as a RemoteDataError for op. A nil err stays nil.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteDataError{Op: op, Err: err}
}
