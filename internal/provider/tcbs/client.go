// Package tcbs implements the screener capability over the TCBS watchlist preview API.
package tcbs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/rewired-gh/comparisonsync/internal/models"
	"github.com/rewired-gh/comparisonsync/internal/provider"
)

const (
	DefaultBaseURL = "https://apipubaws.tcbs.com.vn"
	previewPath    = "/ligo/v1/watchlist/preview"

	// unstablePrefix marks screener columns whose set changes between calls.
	unstablePrefix = "price_vs"
)

// Client provides access to the TCBS stock screener.
type Client struct {
	baseURL    string
	httpClient provider.HTTPClient
	header     http.Header
}

// Option is a configuration option for the screener client.
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

// NewClient creates a new screener client.
func NewClient(options ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
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

type filterClause struct {
	Key      string `json:"key"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

type previewRequest struct {
	TcbsID  *string        `json:"tcbsID"`
	Lang    string         `json:"lang"`
	Filters []filterClause `json:"filters"`
	Size    int            `json:"size"`
}

type previewResponse struct {
	SearchData *struct {
		PageContent []map[string]any `json:"pageContent"`
	} `json:"searchData"`
}

func buildRequest(filter provider.Filter) previewRequest {
	return previewRequest{
		Lang: filter.Lang,
		Filters: []filterClause{
			{Key: "exchangeName", Operator: "=", Value: strings.Join(filter.Exchanges, ",")},
			{Key: "marketCap", Operator: ">=", Value: filter.MarketCapMin},
			{Key: "marketCap", Operator: "<=", Value: filter.MarketCapMax},
		},
		Size: filter.Limit,
	}
}

// Screen fetches the screener universe matching filter. At most filter.Limit
// records are returned. Any failure is a *provider.RemoteDataError.
func (c *Client) Screen(ctx context.Context, filter provider.Filter) ([]models.ComparisonRecord, error) {
	payload, err := json.Marshal(buildRequest(filter))
	if err != nil {
		return nil, provider.Remote("screener", fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+previewPath, bytes.NewReader(payload))
	if err != nil {
		return nil, provider.Remote("screener", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header = c.header.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.Remote("screener", fmt.Errorf("failed to fetch screener: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, provider.Remote("screener", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var body previewResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, provider.Remote("screener", fmt.Errorf("failed to decode screener: %w", err))
	}
	if body.SearchData == nil {
		return nil, provider.Remote("screener", fmt.Errorf("response has no searchData"))
	}

	rows := body.SearchData.PageContent
	if filter.Limit > 0 && len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
	}

	records := make([]models.ComparisonRecord, 0, len(rows))
	for i, row := range rows {
		record, err := toRecord(row)
		if err != nil {
			return nil, provider.Remote("screener", fmt.Errorf("row %d: %w", i, err))
		}
		records = append(records, record)
	}
	return records, nil
}

// toRecord converts a camelCase screener row into a ComparisonRecord, dropping unstable columns.
func toRecord(row map[string]any) (models.ComparisonRecord, error) {
	var record models.ComparisonRecord
	metrics := make(map[string]any, len(row))

	for key, value := range row {
		name := strcase.ToSnake(key)
		if strings.HasPrefix(name, unstablePrefix) {
			continue
		}
		switch name {
		case "ticker":
			s, _ := value.(string)
			record.Ticker = strings.TrimSpace(s)
		case "exchange_name":
			record.ExchangeName, _ = value.(string)
		case "market_cap":
			if value == nil {
				continue
			}
			f, ok := value.(float64)
			if !ok {
				return models.ComparisonRecord{}, fmt.Errorf("market_cap is not a number: %v", value)
			}
			record.MarketCap = f
		default:
			metrics[name] = value
		}
	}
	record.Metrics = metrics

	if err := record.Validate(); err != nil {
		return models.ComparisonRecord{}, fmt.Errorf("invalid screener row: %w", err)
	}
	return record, nil
}
