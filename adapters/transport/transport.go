// Package transport sends JSON requests to the page URL and decodes the
// JSON answers. Every call settles exactly once: response, error status or
// timeout, whichever comes first.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/monoclient/adapters/idgen"
	"github.com/artpar/monoclient/ports"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries the per-request identifier.
const RequestIDHeader = "X-Request-ID"

// Client provides HTTP communication with the mono server.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	ids        ports.IDGenerator
	logger     zerolog.Logger
}

// Config configures the client.
type Config struct {
	// HTTPClient is used for requests. Its own Timeout should be zero: the
	// pull request stays open as long as the server holds it.
	HTTPClient *http.Client
	Headers    map[string]string
	IDs        ports.IDGenerator
	Logger     zerolog.Logger
}

// New creates a new transport client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	ids := cfg.IDs
	if ids == nil {
		ids = idgen.UUID{}
	}

	return &Client{
		httpClient: httpClient,
		headers:    cfg.Headers,
		ids:        ids,
		logger:     cfg.Logger.With().Str("component", "http").Logger(),
	}
}

// Send posts payload as JSON and decodes a 200 response into result.
// Any other status yields a *StatusError carrying the response body; no
// response within a positive timeout yields a *TimeoutError. A 200 body
// that result rejects yields a *DecodeError.
func (c *Client) Send(ctx context.Context, method, url string, payload, result any, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log := c.prepare(req)
	log.Debug().RawJSON("data", data).Msg("send")

	body, err := c.do(req, timeout)
	if err != nil {
		log.Debug().Err(err).Msg("error")
		return err
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			log.Debug().Err(err).Msg("error")
			return &DecodeError{Body: string(body), Err: err}
		}
	}

	log.Debug().Int("bytes", len(body)).Msg("receive")
	return nil
}

// Fetch GETs the page itself and returns its body.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	log := c.prepare(req)
	log.Debug().Msg("fetch")

	return c.do(req, 0)
}

func (c *Client) prepare(req *http.Request) zerolog.Logger {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	id := c.ids.New()
	req.Header.Set(RequestIDHeader, id)

	return c.logger.With().
		Str("request_id", id).
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Logger()
}

func (c *Client) do(req *http.Request, timeout time.Duration) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.wrap(req, err, timeout)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.wrap(req, err, timeout)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) wrap(req *http.Request, err error, timeout time.Duration) error {
	if timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{URL: req.URL.String(), Timeout: timeout}
	}
	return fmt.Errorf("execute request: %w", err)
}

// Ensure interface compliance.
var _ ports.Transport = (*Client)(nil)

// StatusError is a response with a status other than 200.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// TimeoutError means no response arrived before the deadline.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no response from %s within %s", e.URL, e.Timeout)
}

// DecodeError is a 200 response whose body could not be decoded.
type DecodeError struct {
	Body string
	Err  error
}

func (e *DecodeError) Error() string {
	return "decode response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecode reports whether err is a *DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsTimeout reports whether err is a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
