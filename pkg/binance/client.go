package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultSpotBaseURL    = "https://api.binance.com"
	DefaultFuturesBaseURL = "https://dapi.binance.com"

	spotAPIPrefix    = "/api/v3"
	futuresAPIPrefix = "/dapi/v1"
)

// Client is a thin REST client for one Binance venue. The same struct
// serves spot and coin-margined futures; only the host and path prefix
// differ.
type Client struct {
	baseURL    string
	apiPrefix  string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewSpotClient(baseURL, apiKey, apiSecret string) *Client {
	if baseURL == "" {
		baseURL = DefaultSpotBaseURL
	}
	return newClient(baseURL, spotAPIPrefix, apiKey, apiSecret)
}

func NewFuturesClient(baseURL, apiKey, apiSecret string) *Client {
	if baseURL == "" {
		baseURL = DefaultFuturesBaseURL
	}
	return newClient(baseURL, futuresAPIPrefix, apiKey, apiSecret)
}

func newClient(baseURL, apiPrefix, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiPrefix:  apiPrefix,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		// Binance request-weight budget is 1200/min; stay well under it.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

func (c *Client) sign(query string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest performs one rate-limited call and returns the raw body.
// Non-2xx responses become errors carrying the venue's payload; callers
// propagate them untouched, retry policy is not this layer's concern.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("signature", c.sign(params.Encode()))
	}

	endpoint := c.baseURL + c.apiPrefix + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("binance %s %s: status %d: %s", method, path, resp.StatusCode, string(body))
	}
	return body, nil
}
