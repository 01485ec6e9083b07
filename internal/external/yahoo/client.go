package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hansel67/stock-analyzer/internal/contracts"
	"github.com/hansel67/stock-analyzer/pkg/httputil"
	"github.com/hansel67/stock-analyzer/pkg/logger"
)

// Client handles communication with the Yahoo Finance chart API
// ⭐ SSOT: 해외 시세 API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new chart API client
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// chartResponse /v8/finance/chart 응답
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		Currency             string `json:"currency"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// FetchPrices downloads daily closes for symbol in [from, to].
// Adjusted closes are preferred; days without a close are skipped.
// Any retrieval problem is reported as contracts.ErrDataUnavailable.
func (c *Client) FetchPrices(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", from.Unix()))
	params.Set("period2", fmt.Sprintf("%d", to.Unix()))
	params.Set("interval", "1d")
	params.Set("events", "div,split")
	params.Set("includeAdjustedClose", "true")

	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	var body chartResponse
	if err := c.httpClient.GetJSON(ctx, fullURL, &body); err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return contracts.PriceSeries{}, fmt.Errorf("%w: unknown symbol %s", contracts.ErrDataUnavailable, symbol)
		}
		return contracts.PriceSeries{}, fmt.Errorf("%w: %s: %v", contracts.ErrDataUnavailable, symbol, err)
	}

	if e := body.Chart.Error; e != nil {
		return contracts.PriceSeries{}, fmt.Errorf("%w: %s: %s (%s)", contracts.ErrDataUnavailable, symbol, e.Description, e.Code)
	}
	if len(body.Chart.Result) == 0 {
		return contracts.PriceSeries{}, fmt.Errorf("%w: %s: empty chart result", contracts.ErrDataUnavailable, symbol)
	}

	points := parseChart(body.Chart.Result[0])
	if len(points) == 0 {
		return contracts.PriceSeries{}, fmt.Errorf("%w: no closes for %s between %s and %s", contracts.ErrDataUnavailable,
			symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	series, err := contracts.NewPriceSeries(symbol, points)
	if err != nil {
		return contracts.PriceSeries{}, err
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  series.Len(),
		"from":   series.First().Format("2006-01-02"),
		"to":     series.Last().Format("2006-01-02"),
	}).Debug("Fetched prices")

	return series, nil
}

// parseChart 타임스탬프 → 거래소 현지 날짜(UTC 자정)로 정규화, 같은 날짜는 마지막 값 유지
func parseChart(r chartResult) []contracts.PricePoint {
	loc := time.UTC
	if r.Meta.ExchangeTimezoneName != "" {
		if l, err := time.LoadLocation(r.Meta.ExchangeTimezoneName); err == nil {
			loc = l
		}
	}

	var closes []*float64
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) == len(r.Timestamp) {
		closes = r.Indicators.AdjClose[0].AdjClose
	} else if len(r.Indicators.Quote) > 0 {
		closes = r.Indicators.Quote[0].Close
	}

	points := make([]contracts.PricePoint, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		local := time.Unix(ts, 0).In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

		n := len(points)
		switch {
		case n > 0 && points[n-1].Date.Equal(day):
			points[n-1].Close = *closes[i]
		case n > 0 && day.Before(points[n-1].Date):
			// 역순 타임스탬프는 무시
			continue
		default:
			points = append(points, contracts.PricePoint{Date: day, Close: *closes[i]})
		}
	}
	return points
}
