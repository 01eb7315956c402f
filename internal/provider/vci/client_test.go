package vci

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/rewired-gh/comparisonsync/internal/provider"
	"github.com/rewired-gh/comparisonsync/internal/provider/fixture"
	"github.com/rewired-gh/comparisonsync/internal/provider/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestQuotesLiveSession(t *testing.T) {
	t.Parallel()

	// Arrange: a mock http client serving an open-session price board.
	ctrl := gomock.NewController(t)
	httpClient := mock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodPost, req.Method)
			require.Equal(t, "http://board.test"+priceBoardPath, req.URL.String())

			var body boardRequest
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			require.Equal(t, []string{"AAA", "BBB"}, body.Symbols)

			return jsonResponse(http.StatusOK, `[
				{"listingInfo":{"symbol":"AAA","refPrice":10000,"ceiling":10700,"floor":9300},
				 "matchPrice":{"matchPrice":10500,"accumulatedVolume":1200}},
				{"listingInfo":{"symbol":"BBB","refPrice":20000,"ceiling":21400,"floor":18600},
				 "matchPrice":{"accumulatedVolume":0}}
			]`), nil
		}).
		Times(1)

	client := NewClient(WithBaseURL("http://board.test"), WithHTTPClient(httpClient))

	// Act
	batch, err := client.Quotes(t.Context(), []string{"AAA", "BBB"})

	// Assert: the batch is live because the column exists, even if one cell is empty.
	require.NoError(t, err)
	require.True(t, batch.HasMatchPrice)
	require.Len(t, batch.Records, 2)
	require.Equal(t, "AAA", batch.Records[0].Symbol)
	require.Equal(t, 10000.0, batch.Records[0].RefPrice)
	require.NotNil(t, batch.Records[0].MatchPrice)
	require.Equal(t, 10500.0, *batch.Records[0].MatchPrice)
	require.Equal(t, 1200.0, batch.Records[0].AccumulatedVolume)
	require.Nil(t, batch.Records[1].MatchPrice)
}

func TestQuotesClosedSession(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := mock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(jsonResponse(http.StatusOK, `[{"listingInfo":{"symbol":"AAA","refPrice":10000}}]`), nil).
		Times(1)

	batch, err := NewClient(WithHTTPClient(httpClient)).Quotes(t.Context(), []string{"AAA", "ZZZ"})
	require.NoError(t, err)
	require.False(t, batch.HasMatchPrice)
	require.Len(t, batch.Records, 1, "missing tickers are not an error")
}

func TestQuotesNullMatchPrice(t *testing.T) {
	t.Parallel()

	// A null match price still publishes the column: the batch is live with an empty cell.
	ctrl := gomock.NewController(t)
	httpClient := mock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(jsonResponse(http.StatusOK, `[
			{"listingInfo":{"symbol":"AAA","refPrice":10000},"matchPrice":{"matchPrice":null,"accumulatedVolume":null}}
		]`), nil).
		Times(1)

	batch, err := NewClient(WithHTTPClient(httpClient)).Quotes(t.Context(), []string{"AAA"})
	require.NoError(t, err)
	require.True(t, batch.HasMatchPrice)
	require.Len(t, batch.Records, 1)
	require.Nil(t, batch.Records[0].MatchPrice)
	require.Zero(t, batch.Records[0].AccumulatedVolume)
}

func TestQuotesMatchPriceSessionAgreesWithFixture(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		matchPrice  string
		fixtureRow  map[string]any
		wantSession bool
	}{
		{
			name:        "null match price",
			matchPrice:  `,"matchPrice":{"matchPrice":null}`,
			fixtureRow:  map[string]any{"symbol": "AAA", "ref_price": 10000.0, "match_price": nil},
			wantSession: true,
		},
		{
			name:        "numeric match price",
			matchPrice:  `,"matchPrice":{"matchPrice":10500}`,
			fixtureRow:  map[string]any{"symbol": "AAA", "ref_price": 10000.0, "match_price": 10500.0},
			wantSession: true,
		},
		{
			name:        "no match price",
			fixtureRow:  map[string]any{"symbol": "AAA", "ref_price": 10000.0},
			wantSession: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			httpClient := mock.NewMockHTTPClient(ctrl)
			httpClient.EXPECT().
				Do(gomock.Any()).
				Return(jsonResponse(http.StatusOK, `[{"listingInfo":{"symbol":"AAA","refPrice":10000}`+tt.matchPrice+`}]`), nil).
				Times(1)

			live, err := NewClient(WithHTTPClient(httpClient)).Quotes(t.Context(), []string{"AAA"})
			require.NoError(t, err)

			fx, err := fixture.New(fixture.Document{Quotes: []map[string]any{tt.fixtureRow}}).Quotes(t.Context(), []string{"AAA"})
			require.NoError(t, err)

			require.Equal(t, tt.wantSession, live.HasMatchPrice)
			require.Equal(t, fx.HasMatchPrice, live.HasMatchPrice)
			require.Equal(t, fx.Records[0].MatchPrice, live.Records[0].MatchPrice)
		})
	}
}

func TestQuotesChunking(t *testing.T) {
	t.Parallel()

	// Arrange: five tickers at two per request means three sequential calls.
	ctrl := gomock.NewController(t)
	httpClient := mock.NewMockHTTPClient(ctrl)

	var seen [][]string
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			var body boardRequest
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			seen = append(seen, body.Symbols)

			items := make([]string, 0, len(body.Symbols))
			for _, s := range body.Symbols {
				items = append(items, `{"listingInfo":{"symbol":"`+s+`","refPrice":1000}}`)
			}
			return jsonResponse(http.StatusOK, "["+strings.Join(items, ",")+"]"), nil
		}).
		Times(3)

	client := NewClient(WithHTTPClient(httpClient), WithChunkSize(2))
	batch, err := client.Quotes(t.Context(), []string{"A", "B", "C", "D", "E"})

	require.NoError(t, err)
	require.Equal(t, [][]string{{"A", "B"}, {"C", "D"}, {"E"}}, seen)
	require.Len(t, batch.Records, 5)
	require.Equal(t, "E", batch.Records[4].Symbol)
}

func TestQuotesEmptyTickerList(t *testing.T) {
	t.Parallel()

	// No expectations: any call to Do fails the test.
	ctrl := gomock.NewController(t)
	httpClient := mock.NewMockHTTPClient(ctrl)

	batch, err := NewClient(WithHTTPClient(httpClient)).Quotes(t.Context(), nil)
	require.NoError(t, err)
	require.Empty(t, batch.Records)
	require.False(t, batch.HasMatchPrice)
}

func TestQuotesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp *http.Response
		err  error
	}{
		{name: "transport failure", err: errors.New("connection reset")},
		{name: "server error", resp: jsonResponse(http.StatusBadGateway, `bad gateway`)},
		{name: "malformed body", resp: jsonResponse(http.StatusOK, `{"not":"a list"}`)},
		{name: "missing listing info", resp: jsonResponse(http.StatusOK, `[{"matchPrice":{"matchPrice":1}}]`)},
		{name: "non-numeric match price", resp: jsonResponse(http.StatusOK, `[{"listingInfo":{"symbol":"AAA","refPrice":1},"matchPrice":{"matchPrice":"n/a"}}]`)},
		{name: "empty symbol", resp: jsonResponse(http.StatusOK, `[{"listingInfo":{"symbol":"","refPrice":1}}]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			httpClient := mock.NewMockHTTPClient(ctrl)
			httpClient.EXPECT().Do(gomock.Any()).Return(tt.resp, tt.err).Times(1)

			_, err := NewClient(WithHTTPClient(httpClient)).Quotes(t.Context(), []string{"AAA"})

			var remoteErr *provider.RemoteDataError
			require.ErrorAs(t, err, &remoteErr)
			require.Equal(t, "quotes", remoteErr.Op)
		})
	}
}
