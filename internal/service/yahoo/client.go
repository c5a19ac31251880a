package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/service/ratelimit"
	xhttp "FinCast/pkg/http"
	applogger "FinCast/pkg/logger"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	defaultUserAgent = "Mozilla/5.0 (compatible; fincast/1.0)"
)

// Client fetches daily bars from the Yahoo Finance chart API.
type Client struct {
	http    *xhttp.Client
	baseURL string
	loc     *time.Location
	limiter *ratelimit.Limiter
	burst   float64
	perSec  float64
	l       *applogger.Logger
}

type Option func(*Client)

// WithBaseURL points the client at another host (tests, proxies).
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithRateLimit bounds outgoing requests.
func WithRateLimit(burst, perSec float64) Option {
	return func(c *Client) {
		c.burst = burst
		c.perSec = perSec
	}
}

func WithLogger(l *applogger.Logger) Option { return func(c *Client) { c.l = l } }

// New builds a client; loc is used to assign calendar dates when the
// response does not name the exchange timezone.
func New(httpClient *xhttp.Client, loc *time.Location, opts ...Option) *Client {
	if loc == nil {
		loc = time.UTC
	}
	c := &Client{
		http:    httpClient,
		baseURL: DefaultBaseURL,
		loc:     loc,
		limiter: ratelimit.New(),
		burst:   5,
		perSec:  2,
		l:       applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol           string `json:"symbol"`
		ExchangeTimezone string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// History returns daily bars in [from, to]. Unknown symbols and empty
// ranges yield an empty series, not an error.
func (c *Client) History(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	series := models.PriceSeries{Symbol: symbol}
	if err := c.limiter.Wait(ctx, "chart", c.burst, c.perSec); err != nil {
		return series, err
	}

	start := time.Now()
	resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(symbol)),
		Headers: map[string]string{
			"User-Agent": defaultUserAgent,
			"Accept":     "application/json",
		},
		QueryParams: map[string][]string{
			"period1":  {strconv.FormatInt(from.Unix(), 10)},
			"period2":  {strconv.FormatInt(to.Unix(), 10)},
			"interval": {"1d"},
			"events":   {"history"},
		},
	})
	if err != nil {
		return series, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return series, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return series, fmt.Errorf("yahoo chart %s: unexpected status %d: %s", symbol, resp.StatusCode, body)
	}

	var cr chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return series, fmt.Errorf("yahoo chart %s: decode json: %w", symbol, err)
	}
	if cr.Chart.Error != nil {
		if cr.Chart.Error.Code == "Not Found" {
			return series, nil
		}
		return series, fmt.Errorf("yahoo chart %s: %s: %s", symbol, cr.Chart.Error.Code, cr.Chart.Error.Description)
	}
	if len(cr.Chart.Result) == 0 {
		return series, nil
	}
	series.Bars = c.toBars(cr.Chart.Result[0])
	c.l.Debug("yahoo chart ok",
		applogger.String("symbol", symbol),
		applogger.Int("bars", series.Len()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return series, nil
}

// toBars converts the columnar response into date-ordered bars. Rows with
// a missing close are dropped; when two rows fall on the same date the
// later one wins.
func (c *Client) toBars(r chartResult) []models.PriceBar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	loc := c.loc
	if r.Meta.ExchangeTimezone != "" {
		if l, err := time.LoadLocation(r.Meta.ExchangeTimezone); err == nil {
			loc = l
		}
	}

	out := make([]models.PriceBar, 0, len(r.Timestamp))
	seen := make(map[models.Date]int, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closeV := at(q.Close, i)
		if closeV == nil {
			continue
		}
		b := models.PriceBar{
			Date:   models.DateOf(time.Unix(ts, 0).In(loc)),
			Close:  *closeV,
			Open:   valueOr(at(q.Open, i), *closeV),
			High:   valueOr(at(q.High, i), *closeV),
			Low:    valueOr(at(q.Low, i), *closeV),
			Volume: valueOr(at(q.Volume, i), 0),
		}
		if j, ok := seen[b.Date]; ok {
			out[j] = b
			continue
		}
		seen[b.Date] = len(out)
		out = append(out, b)
	}
	models.PriceSeries{Bars: out}.Sort()
	return out
}

func at(xs []*float64, i int) *float64 {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
