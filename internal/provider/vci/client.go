// Package vci implements the quote capability over the VCI price board API.
package vci

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rewired-gh/comparisonsync/internal/models"
	"github.com/rewired-gh/comparisonsync/internal/provider"
)

const (
	DefaultBaseURL   = "https://trading.vietcap.com.vn"
	DefaultChunkSize = 500
	priceBoardPath   = "/api/price/symbols/getList"
)

// Client provides access to the VCI price board.
type Client struct {
	baseURL    string
	chunkSize  int
	httpClient provider.HTTPClient
	header     http.Header
}

// Option is a configuration option for the price board client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient provider.HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout uses a dedicated http.Client with the given timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithChunkSize caps the number of symbols sent per request.
func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// NewClient creates a new price board client.
func NewClient(options ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		chunkSize:  DefaultChunkSize,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	c.header.Set("Accept", "application/json")
	c.header.Set("Content-Type", "application/json")
	for _, option := range options {
		option(c)
	}
	return c
}

type boardRequest struct {
	Symbols []string `json:"symbols"`
}

// boardItem mirrors one price board entry. The matchPrice field is only
// published while the market session is open; it is kept raw so that a null
// value can be told apart from an absent key.
type boardItem struct {
	ListingInfo *struct {
		Symbol   string  `json:"symbol"`
		RefPrice float64 `json:"refPrice"`
		Ceiling  float64 `json:"ceiling"`
		Floor    float64 `json:"floor"`
	} `json:"listingInfo"`
	MatchPrice map[string]json.RawMessage `json:"matchPrice"`
}

// nullableFloat decodes a JSON number, returning nil for null.
func nullableFloat(raw json.RawMessage) (*float64, error) {
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Quotes fetches the price board for tickers. Tickers the provider has no data for
// are simply absent from the result. Any failure is a *provider.RemoteDataError.
func (c *Client) Quotes(ctx context.Context, tickers []string) (models.QuoteBatch, error) {
	var batch models.QuoteBatch
	for start := 0; start < len(tickers); start += c.chunkSize {
		end := min(start+c.chunkSize, len(tickers))

		items, err := c.fetchChunk(ctx, tickers[start:end])
		if err != nil {
			return models.QuoteBatch{}, provider.Remote("quotes", err)
		}

		for i, item := range items {
			if item.ListingInfo == nil {
				return models.QuoteBatch{}, provider.Remote("quotes", fmt.Errorf("item %d has no listingInfo", start+i))
			}
			record := models.QuoteRecord{
				Symbol:   strings.TrimSpace(item.ListingInfo.Symbol),
				RefPrice: item.ListingInfo.RefPrice,
				Ceiling:  item.ListingInfo.Ceiling,
				Floor:    item.ListingInfo.Floor,
			}
			if raw, ok := item.MatchPrice["matchPrice"]; ok {
				// The key marks a live session even when this symbol has not traded.
				batch.HasMatchPrice = true
				price, err := nullableFloat(raw)
				if err != nil {
					return models.QuoteBatch{}, provider.Remote("quotes", fmt.Errorf("item %d: invalid matchPrice: %w", start+i, err))
				}
				record.MatchPrice = price
			}
			if raw, ok := item.MatchPrice["accumulatedVolume"]; ok {
				volume, err := nullableFloat(raw)
				if err != nil {
					return models.QuoteBatch{}, provider.Remote("quotes", fmt.Errorf("item %d: invalid accumulatedVolume: %w", start+i, err))
				}
				if volume != nil {
					record.AccumulatedVolume = *volume
				}
			}
			if err := record.Validate(); err != nil {
				return models.QuoteBatch{}, provider.Remote("quotes", fmt.Errorf("invalid quote: %w", err))
			}
			batch.Records = append(batch.Records, record)
		}
	}
	return batch, nil
}

func (c *Client) fetchChunk(ctx context.Context, symbols []string) ([]boardItem, error) {
	payload, err := json.Marshal(boardRequest{Symbols: symbols})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+priceBoardPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = c.header.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price board: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var items []boardItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode price board: %w", err)
	}
	return items, nil
}
