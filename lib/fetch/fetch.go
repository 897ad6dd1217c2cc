package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"recorder-scraper/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

// Error classifies a failed page fetch. Transient failures (timeouts,
// connection resets, 5xx, 429) have already been retried up to the
// configured bound before this is returned.
type Error struct {
	URL       string
	Status    int
	Transient bool
	cause     error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.cause != nil {
		return fmt.Sprintf("fetch %s: %s: %s", e.URL, kind, e.cause)
	}
	return fmt.Sprintf("fetch %s: %s: status %d", e.URL, kind, e.Status)
}

func (e *Error) Unwrap() error {
	return e.cause
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Options struct {
	// defaults to a desktop Chrome user agent
	UserAgent string
	// defaults to 30s
	Timeout time.Duration
	// additional attempts after the first, defaults to 3
	RetryCount int
	// initial backoff wait, defaults to resty's 100ms
	RetryWait time.Duration
}

type Client struct {
	http *resty.Client
}

func NewClient(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	if opts.RetryCount == 0 {
		opts.RetryCount = 3
	}

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetTimeout(opts.Timeout)
	client.SetRetryCount(opts.RetryCount)
	if opts.RetryWait > 0 {
		client.SetRetryWaitTime(opts.RetryWait)
	}
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return res.StatusCode() >= 500 || res.StatusCode() == http.StatusTooManyRequests
	})

	telemetry.InstrumentResty(client, "lib/fetch")

	return &Client{http: client}
}

// Get performs one page retrieval and returns the raw body and status.
// Retries for transient conditions happen inside the call; the error
// reports the final classification.
func (c *Client) Get(ctx context.Context, url string) ([]byte, int, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, 0, &Error{URL: url, Transient: true, cause: err}
	}

	status := res.StatusCode()
	if status != http.StatusOK {
		transient := status >= 500 || status == http.StatusTooManyRequests
		return nil, status, &Error{URL: url, Status: status, Transient: transient}
	}
	return res.Body(), status, nil
}
