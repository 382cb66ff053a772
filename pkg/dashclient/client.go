// Package dashclient is a typed client for the szenai proxy. It keeps its
// own short-lived response cache and retries transient failures.
package dashclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"szenai/internal/cache"
	"szenai/internal/constants"
	"szenai/internal/retry"
	"szenai/pkg/waha/types"
)

// Client calls the proxy mounted at a base URL such as
// http://localhost:8082/api/waha.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
	cacheTTL   time.Duration
	backoff    *retry.Backoff
	logger     *logrus.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCacheTTL sets how long responses are served from the local cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithRetry overrides the retry count and the fixed delay between attempts.
func WithRetry(retries int, delay time.Duration) Option {
	return func(c *Client) { c.backoff = retry.NewBackoff(retry.FixedDelayConfig(retries, delay)) }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: constants.DefaultUpstreamTimeoutSec * time.Second},
		cacheTTL:   constants.DefaultCacheTTL,
		backoff: retry.NewBackoff(retry.FixedDelayConfig(
			constants.DefaultUpstreamRetryCount,
			constants.DefaultUpstreamRetryDelayMs*time.Millisecond,
		)),
		logger: logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = cache.New(c.cacheTTL, cache.WithClock(c.now))
	return c, nil
}

// ClearCache drops every locally cached response.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// get serves path from the local cache or fetches and caches it.
func (c *Client) get(ctx context.Context, logicalPath, escapedPath string, query url.Values, out interface{}) error {
	key := cache.Key(logicalPath, query)
	if payload, ok := c.cache.Get(key); ok {
		return json.Unmarshal(payload, out)
	}

	body, err := c.do(ctx, http.MethodGet, escapedPath, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", logicalPath, err)
	}
	c.cache.Set(key, body)
	return nil
}

// mutate performs a write and clears the local cache on success.
func (c *Client) mutate(ctx context.Context, method, escapedPath string, payload interface{}) (json.RawMessage, error) {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	body, err := c.do(ctx, method, escapedPath, nil, data)
	if err != nil {
		return nil, err
	}
	c.cache.Clear()
	return body, nil
}

func (c *Client) do(ctx context.Context, method, escapedPath string, query url.Values, payload []byte) ([]byte, error) {
	target := c.baseURL + escapedPath
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body []byte
	err := c.backoff.RetryNotify(ctx, func() error {
		var err error
		body, err = c.attempt(ctx, method, target, payload)
		return err
	}, isRetryable, func(attempt int, err error, delay time.Duration) {
		c.logger.WithError(err).WithFields(logrus.Fields{
			constants.LogFieldMethod:   method,
			constants.LogFieldEndpoint: escapedPath,
			constants.LogFieldAttempt:  attempt,
		}).Debug("Retrying proxy request")
	})
	return body, err
}

func (c *Client) attempt(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if len(payload) > 0 {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxUpstreamBodyBytes))
	if err != nil {
		return nil, &NetworkError{Message: "failed to read response", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: body}
	}
	return body, nil
}

func chatPath(chatID, rest string) (logical, escaped string) {
	return types.PathChats + "/" + chatID + rest, types.PathChats + "/" + url.PathEscape(chatID) + rest
}

func messagePath(chatID, messageID, rest string) (logical, escaped string) {
	logical, escaped = chatPath(chatID, "/messages/")
	return logical + messageID + rest, escaped + url.PathEscape(messageID) + rest
}

// PendingMessage builds the optimistic local copy of a message that is being
// sent. It carries a temporary id and pending ack until the chat is
// re-fetched.
func (c *Client) PendingMessage(chatID, text string) types.Message {
	return types.Message{
		ID:        types.ID("pending_" + uuid.NewString()),
		Timestamp: c.now().Unix(),
		To:        chatID,
		FromMe:    true,
		Body:      text,
		Ack:       types.AckPending,
		AckName:   types.AckPending.String(),
	}
}
