package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansel67/stock-analyzer/internal/contracts"
	"github.com/hansel67/stock-analyzer/pkg/config"
	"github.com/hansel67/stock-analyzer/pkg/httputil"
	"github.com/hansel67/stock-analyzer/pkg/logger"
)

// 2024-01-02 ~ 2024-01-05 14:30 UTC (뉴욕 장중)
const chartBody = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "AAPL", "currency": "USD", "exchangeTimezoneName": "America/New_York"},
      "timestamp": [1704205800, 1704292200, 1704378600, 1704465000],
      "indicators": {
        "quote": [{"close": [185.64, 184.25, null, 181.18]}],
        "adjclose": [{"adjclose": [184.73, 183.35, null, 180.29]}]
      }
    }],
    "error": null
  }
}`

func newTestClient(url string) *Client {
	cfg := &config.Config{MarketData: config.MarketDataConfig{Timeout: 2 * time.Second, RequestsPerSecond: 50}}
	hc := httputil.New(cfg, logger.Nop()).WithRetry(1, time.Millisecond)
	return NewClient(hc, logger.Nop(), url)
}

func TestFetchPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1704067200", r.URL.Query().Get("period1"))
		fmt.Fprint(w, chartBody)
	}))
	defer server.Close()

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)

	s, err := newTestClient(server.URL).FetchPrices(context.Background(), "AAPL", from, to)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", s.Symbol())
	require.Equal(t, 3, s.Len(), "null close is skipped")
	assert.Equal(t, []float64{184.73, 183.35, 180.29}, s.Closes(), "adjusted closes preferred")
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), s.First())
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), s.Last())
}

func TestFetchPrices_FallsBackToClose(t *testing.T) {
	body := strings.Replace(chartBody, `"adjclose": [{"adjclose": [184.73, 183.35, null, 180.29]}]`, `"adjclose": []`, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	s, err := newTestClient(server.URL).FetchPrices(context.Background(), "AAPL", time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []float64{185.64, 184.25, 181.18}, s.Closes())
}

func TestFetchPrices_Unavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "unknown symbol",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
			},
		},
		{
			name: "chart error with 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Bad Request","description":"Invalid input"}}}`)
			},
		},
		{
			name: "empty result",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"chart":{"result":[],"error":null}}`)
			},
		},
		{
			name: "no closes",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"chart":{"result":[{"meta":{},"timestamp":[],"indicators":{"quote":[{"close":[]}]}}],"error":null}}`)
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "garbage",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `<html>`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := newTestClient(server.URL).FetchPrices(context.Background(), "NOPE", time.Time{}, time.Now())
			assert.True(t, errors.Is(err, contracts.ErrDataUnavailable), "got %v", err)
		})
	}
}

func TestFetchPrices_InvalidPrice(t *testing.T) {
	body := `{"chart":{"result":[{"meta":{},"timestamp":[1704205800,1704292200],"indicators":{"quote":[{"close":[10,0]}]}}],"error":null}}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchPrices(context.Background(), "BAD", time.Time{}, time.Now())
	assert.True(t, errors.Is(err, contracts.ErrInvalidPrice), "got %v", err)
}

func TestParseChart_SameDayKeepsLast(t *testing.T) {
	c1, c2 := 10.0, 11.0
	var r chartResult
	r.Timestamp = []int64{1704205800, 1704205900}
	r.Indicators.Quote = append(r.Indicators.Quote, struct {
		Close []*float64 `json:"close"`
	}{Close: []*float64{&c1, &c2}})

	points := parseChart(r)
	require.Len(t, points, 1)
	assert.Equal(t, 11.0, points[0].Close)
}
