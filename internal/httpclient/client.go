// Package httpclient provides the pooled HTTP client every forge platform
// shares. It keeps warm connections per scheme, bounds response sizes, and
// offers a retry wrapper with linear backoff.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultMaxConnsPerHost     = 5
	defaultMaxIdleConnsPerHost = 2

	// Responses larger than this are treated as a fault of the endpoint.
	defaultMaxResponseBytes = 10 << 20 // 10 MiB

	// Maximum length of the response-body snippet carried by a StatusError.
	snippetLimit = 500
)

// ErrResponseTooLarge is returned when a response body exceeds the configured
// ceiling. It is never retried.
var ErrResponseTooLarge = errors.New("response too large")

// StatusError is a non-2xx response. The body snippet is truncated and only
// intended for diagnostics.
type StatusError struct {
	StatusCode int
	Status     string
	Snippet    string
}

func (e *StatusError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("request failed: %s", e.Status)
	}
	return fmt.Sprintf("request failed: %s: %s", e.Status, e.Snippet)
}

// MalformedResponseError is a 2xx response whose body could not be parsed as
// JSON. Retrying would fetch the same body, so it is never retried.
type MalformedResponseError struct {
	cause error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response body: %v", e.cause)
}

func (e *MalformedResponseError) Unwrap() error { return e.cause }

// Options configures a Client. The zero value selects the defaults.
type Options struct {
	MaxConnsPerHost     int
	MaxIdleConnsPerHost int
	MaxResponseBytes    int64

	// BackoffUnit scales the linear retry backoff; it exists for tests.
	BackoffUnit time.Duration
}

// RequestOptions shapes a single request. Method defaults to GET. The body,
// when set, is replayed as-is on every retry attempt.
type RequestOptions struct {
	Method  string
	Header  http.Header
	Timeout time.Duration
	Body    []byte
}

// Client issues JSON requests over two persistent connection pools, one for
// plain HTTP and one for TLS, so repeated polling of the same forge reuses
// established connections.
type Client struct {
	plain   *http.Client
	secure  *http.Client
	maxBody int64
	backoff time.Duration
}

// New creates a Client with warmable pools per scheme.
func New(opts Options) *Client {
	if opts.MaxConnsPerHost <= 0 {
		opts.MaxConnsPerHost = defaultMaxConnsPerHost
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = defaultMaxResponseBytes
	}
	if opts.BackoffUnit <= 0 {
		opts.BackoffUnit = time.Second
	}

	newPool := func() *http.Client {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.MaxConnsPerHost = opts.MaxConnsPerHost
		transport.MaxIdleConnsPerHost = opts.MaxIdleConnsPerHost

		return &http.Client{Transport: transport}
	}

	return &Client{
		plain:   newPool(),
		secure:  newPool(),
		maxBody: opts.MaxResponseBytes,
		backoff: opts.BackoffUnit,
	}
}

// DoJSON issues a single request and decodes the JSON response into v. A nil
// v discards the body. Failures are: transport errors, timeouts, non-2xx
// statuses (StatusError), oversized bodies (ErrResponseTooLarge) and
// undecodable bodies (MalformedResponseError).
func (c *Client) DoJSON(ctx context.Context, rawURL string, opts RequestOptions, v any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid request URL: %w", err)
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var body io.Reader
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	for k, vals := range opts.Header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}

	log.Ctx(ctx).Debug().
		Str("method", method).
		Str("url", RedactURL(u)).
		Msg("forge request")

	resp, err := c.clientFor(u.Scheme).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	payload, err := c.readCapped(resp.Body)
	if err != nil {
		return err
	}

	if v == nil {
		return nil
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return &MalformedResponseError{cause: err}
	}

	return nil
}

// DoJSONWithRetry issues the request up to maxRetries+1 times, sleeping
// attempt×backoff between attempts. Transport errors, timeouts and non-2xx
// statuses are retried; oversized or malformed responses are surfaced
// immediately since retrying cannot change them. The last error is returned
// unchanged once attempts are exhausted.
func (c *Client) DoJSONWithRetry(ctx context.Context, rawURL string, opts RequestOptions, v any, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}

			log.Ctx(ctx).Debug().
				Int("attempt", attempt+1).
				Str("url", RedactString(rawURL)).
				Msg("retrying forge request")
		}

		err := c.DoJSON(ctx, rawURL, opts, v)
		if err == nil {
			return nil
		}

		lastErr = err
		if !retryable(err) {
			return err
		}
	}

	return lastErr
}

// Close drops the idle connections of both pools. In-flight requests are
// allowed to finish.
func (c *Client) Close() error {
	c.plain.CloseIdleConnections()
	c.secure.CloseIdleConnections()
	return nil
}

func (c *Client) clientFor(scheme string) *http.Client {
	if scheme == "https" {
		return c.secure
	}
	return c.plain
}

func (c *Client) readCapped(r io.Reader) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(r, c.maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(payload)) > c.maxBody {
		return nil, ErrResponseTooLarge
	}
	return payload, nil
}

func retryable(err error) bool {
	var malformed *MalformedResponseError
	return !errors.Is(err, ErrResponseTooLarge) && !errors.As(err, &malformed)
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, snippetLimit))

	return &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Snippet:    strings.TrimSpace(string(snippet)),
	}
}

// sensitiveParams are query parameters whose values are credentials on at
// least one supported forge.
var sensitiveParams = []string{"access_token", "private_token", "token"}

// RedactURL renders a URL with credential-bearing query parameters masked,
// for safe logging.
func RedactURL(u *url.URL) string {
	q := u.Query()

	changed := false
	for _, name := range sensitiveParams {
		if q.Has(name) {
			q.Set(name, "REDACTED")
			changed = true
		}
	}

	if !changed {
		return u.String()
	}

	masked := *u
	masked.RawQuery = q.Encode()
	return masked.String()
}

// RedactString is RedactURL for a raw URL string. Unparseable input is
// returned as-is.
func RedactString(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return RedactURL(u)
}
