package prices

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"ge-ledger-go/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Source supplies current market sell prices by item id.
type Source interface {
	SellPrices() (map[int64]int64, error)
}

// ItemPrice is one item's latest high (instant-buy) and low (instant-sell)
// price from the wiki real-time prices API.
type ItemPrice struct {
	High     int64 `json:"high"`
	HighTime int64 `json:"highTime"`
	Low      int64 `json:"low"`
	LowTime  int64 `json:"lowTime"`
}

// ItemMapping is one item's static metadata from the mapping endpoint.
type ItemMapping struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Members bool   `json:"members"`
	Limit   int64  `json:"limit"`
	Value   int64  `json:"value"`
}

// Client is a client for the OSRS wiki real-time Grand Exchange price API.
// It implements Source.
type Client struct {
	client    *resty.Client
	userAgent string
	logger    *zap.Logger
	limiter   *rate.Limiter
}

var _ Source = (*Client)(nil)

// NewClient creates a new wiki price API client. The wiki requires a
// descriptive User-Agent from every consumer.
func NewClient(cfg *config.Prices, logger *zap.Logger) *Client {
	client := resty.New().SetBaseURL(cfg.BaseURL)
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:    client,
		userAgent: cfg.UserAgent,
		logger:    logger,
		limiter:   limiter,
	}
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	req.SetHeader("User-Agent", c.userAgent)

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

type latestResponse struct {
	Data map[string]ItemPrice `json:"data"`
}

// Latest fetches the latest high/low price for every tradable item.
func (c *Client) Latest() (map[int64]ItemPrice, error) {
	var latest latestResponse

	req := c.client.R().
		SetResult(&latest).
		SetHeader("Content-Type", "application/json")
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/latest", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest prices: %w", err)
	}

	result := resp.Result().(*latestResponse)
	priceMap := make(map[int64]ItemPrice, len(result.Data))
	for idStr, price := range result.Data {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			c.logger.Warn("Skipping unparsable item id in price feed", zap.String("item_id", idStr))
			continue
		}
		priceMap[id] = price
	}

	return priceMap, nil
}

// Mapping fetches static item metadata (names, buy limits, shop values).
func (c *Client) Mapping() ([]ItemMapping, error) {
	var mapping []ItemMapping

	req := c.client.R().
		SetResult(&mapping).
		SetHeader("Content-Type", "application/json")
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/mapping", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get item mapping: %w", err)
	}

	return *resp.Result().(*[]ItemMapping), nil
}

// SellPrices returns the instant-sell (low) price per item, falling back
// to the high price when an item has not sold recently.
func (c *Client) SellPrices() (map[int64]int64, error) {
	latest, err := c.Latest()
	if err != nil {
		return nil, err
	}

	sellPrices := make(map[int64]int64, len(latest))
	for id, price := range latest {
		p := price.Low
		if p == 0 {
			p = price.High
		}
		if p > 0 {
			sellPrices[id] = p
		}
	}
	return sellPrices, nil
}
