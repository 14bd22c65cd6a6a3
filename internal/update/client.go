package update

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"plugup/internal/debug"
)

// DefaultTimeout bounds feed and directory requests.
const DefaultTimeout = 30 * time.Second

const userAgent = "plugup"

// Error variables for specific error conditions.
var (
	ErrNetworkFailure = errors.New("network request failed")
	ErrRateLimited    = errors.New("rate limited by the update service")
	ErrInvalidFeed    = errors.New("invalid update feed response")
)

var log = debug.L("update")

// ClientOption configures a FeedClient or DirectoryClient.
type ClientOption func(*http.Client) *http.Client

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(*http.Client) *http.Client {
		return client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *http.Client) *http.Client {
		c.Timeout = timeout
		return c
	}
}

func newHTTPClient(timeout time.Duration, opts []ClientOption) *http.Client {
	c := &http.Client{Timeout: timeout}
	for _, opt := range opts {
		c = opt(c)
	}
	return c
}

func statusError(resp *http.Response) error {
	if resp.StatusCode == http.StatusForbidden {
		return ErrRateLimited
	}
	return fmt.Errorf("%w: status %d", ErrNetworkFailure, resp.StatusCode)
}
