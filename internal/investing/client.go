// Package investing provides a client for the Investing.com app API.
package investing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://aappapi.investing.com"

	// Header values the app API expects on every call.
	defaultXMetaVer       = "14"
	defaultXAppVer        = "1408"
	defaultInternalVer    = "1293"
	defaultUserAgent      = "Dalvik/2.1.0 (Linux; U; Android 10; Pixel 3 Build/QQ1D.200105.002)"
	defaultTimeout        = 30 * time.Second
	defaultRequestsPerSec = 2
)

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrTokenExpired         = errors.New("token expired or invalid")
	ErrPortfolioNotFound    = errors.New("portfolio not found")
	ErrMalformedResponse    = errors.New("malformed response")
)

// Provider error codes returned in system.message_error_code.
const (
	errorCodeTokenExpired     = "1001"
	errorCodeInvalidPortfolio = "203"
)

// Client is an HTTP client for the Investing.com app API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

// NewClient creates a new Investing.com API client.
// An empty baseURL selects the production endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:   baseURL,
		userAgent: defaultUserAgent,
		limiter:   rate.NewLimiter(rate.Limit(defaultRequestsPerSec), defaultRequestsPerSec),
	}
}

// apiQuery builds the common query string every app API call carries.
// The data parameter is the action payload, JSON-encoded without spaces.
func apiQuery(data any) (url.Values, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding action payload: %w", err)
	}
	q := url.Values{}
	q.Set("time_utc_offset", "3600")
	q.Set("skinID", "2")
	q.Set("lang_ID", "4")
	q.Set("data", string(encoded))
	return q, nil
}

// doRequest executes an HTTP request with rate limiting and common headers.
// The token may be empty for unauthenticated calls (login).
func (c *Client) doRequest(ctx context.Context, req *http.Request, token, udid string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-udid", udid)
	req.Header.Set("x-app-ver", defaultXAppVer)
	req.Header.Set("x-meta-ver", defaultXMetaVer)
	if token != "" {
		req.Header.Set("x-token", token)
	}

	return c.httpClient.Do(req.WithContext(ctx))
}

// checkSystem maps provider-level error codes in the response envelope to
// sentinel errors. A nil return means the call succeeded at the API level.
func checkSystem(sys systemBlock) error {
	if sys.Status != "failed" && sys.Status != "error" {
		return nil
	}
	switch sys.MessageErrorCode {
	case errorCodeTokenExpired:
		return ErrTokenExpired
	case errorCodeInvalidPortfolio:
		return ErrPortfolioNotFound
	}
	if msg := sys.Messages.DisplayMessage; msg != "" {
		return fmt.Errorf("api error: %s", msg)
	}
	return fmt.Errorf("api error: code %s", sys.MessageErrorCode)
}
