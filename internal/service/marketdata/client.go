package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PairTrader/internal/domain/models"
	"PairTrader/internal/service/ratelimit"
	xhttp "PairTrader/pkg/http"
	"PairTrader/pkg/logger"
)

// Config tunes the aggregates/quotes client.
type Config struct {
	BaseURL      string
	APIKey       string
	LookbackDays int
	IntervalMin  int
	MinSamples   int
	Fanout       int
	RateLimitRPS float64
	Timeout      time.Duration
}

// Client fetches minute aggregates and NBBO quotes from the market data
// vendor's REST API. Implements domain repository.MarketData.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	log     *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Client {
	if cfg.Fanout <= 0 {
		cfg.Fanout = 10
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 10
	}
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		limiter: ratelimit.New(),
		log:     log,
	}
}

type aggsResponse struct {
	Status  string `json:"status"`
	Ticker  string `json:"ticker"`
	Results []struct {
		Timestamp int64   `json:"t"`
		Close     float64 `json:"c"`
	} `json:"results"`
}

type quotesResponse struct {
	Status  string `json:"status"`
	Results []struct {
		BidPrice float64 `json:"bid_price"`
		AskPrice float64 `json:"ask_price"`
	} `json:"results"`
}

// GetBars fetches close prices for ticker between start and end at the
// given bar interval.
func (c *Client) GetBars(ctx context.Context, ticker string, start, end time.Time, intervalMin int) (models.PriceSeries, error) {
	c.throttle(ctx)

	url := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/%d/minute/%d/%d",
		c.cfg.BaseURL, ticker, intervalMin, start.UnixMilli(), end.UnixMilli())

	var resp aggsResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    url,
		QueryParams: map[string][]string{
			"adjusted": {"true"},
			"sort":     {"asc"},
			"limit":    {"50000"},
			"apiKey":   {c.cfg.APIKey},
		},
	}, &resp)
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("bars %s: %w", ticker, err)
	}
	if resp.Status != "OK" && resp.Status != "DELAYED" {
		return models.PriceSeries{}, fmt.Errorf("bars %s: vendor status %q", ticker, resp.Status)
	}

	series := models.PriceSeries{Ticker: ticker, Bars: make([]models.Bar, 0, len(resp.Results))}
	for _, r := range resp.Results {
		series.Bars = append(series.Bars, models.Bar{
			Time:  time.UnixMilli(r.Timestamp).UTC(),
			Close: r.Close,
		})
	}
	return series, nil
}

// GetQuote fetches the latest NBBO quote for symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	c.throttle(ctx)

	var resp quotesResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v3/quotes/%s", c.cfg.BaseURL, symbol),
		QueryParams: map[string][]string{
			"limit":  {"1"},
			"sort":   {"timestamp"},
			"order":  {"desc"},
			"apiKey": {c.cfg.APIKey},
		},
	}, &resp)
	if err != nil {
		return models.Quote{}, fmt.Errorf("quote %s: %w", symbol, err)
	}
	if len(resp.Results) == 0 {
		return models.Quote{}, fmt.Errorf("quote %s: no results", symbol)
	}

	return models.Quote{
		Symbol: symbol,
		Bid:    resp.Results[0].BidPrice,
		Ask:    resp.Results[0].AskPrice,
	}, nil
}

// FetchFrame pulls the lookback window for all tickers with bounded
// fan-out and aligns them into one frame. Tickers that fail or fall
// short of the sample minimum are dropped with a warning; the call only
// errors when nothing usable remains.
func (c *Client) FetchFrame(ctx context.Context, tickers []string) (*models.Frame, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -c.cfg.LookbackDays)

	var (
		mu     sync.Mutex
		series []models.PriceSeries
		wg     sync.WaitGroup
		tokens = make(chan struct{}, c.cfg.Fanout)
	)

	for _, ticker := range tickers {
		if ctx.Err() != nil {
			break
		}
		tokens <- struct{}{}
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			defer func() { <-tokens }()

			s, err := c.GetBars(ctx, ticker, start, end, c.cfg.IntervalMin)
			if err != nil {
				c.log.Warn("dropping ticker from frame",
					logger.String("ticker", ticker),
					logger.Error(err))
				return
			}
			if len(s.Bars) < c.cfg.MinSamples {
				c.log.Warn("dropping ticker with too few samples",
					logger.String("ticker", ticker),
					logger.Int("samples", len(s.Bars)),
					logger.Int("min_samples", c.cfg.MinSamples))
				return
			}
			mu.Lock()
			series = append(series, s)
			mu.Unlock()
		}(ticker)
	}
	wg.Wait()

	if len(series) == 0 {
		return nil, fmt.Errorf("frame for %d tickers: %w", len(tickers), errNoUsableSeries)
	}
	return models.NewFrame(series, c.cfg.MinSamples), nil
}

var errNoUsableSeries = fmt.Errorf("no usable price series")

// throttle blocks until the vendor rate limit grants a token or the
// context is cancelled.
func (c *Client) throttle(ctx context.Context) {
	for !c.limiter.Allow("vendor", c.cfg.RateLimitRPS, c.cfg.RateLimitRPS) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}
