// Package waha is a typed client for the WAHA WhatsApp HTTP API.
package waha

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

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"szenai/internal/constants"
	"szenai/internal/metrics"
	"szenai/internal/privacy"
	"szenai/internal/retry"
	"szenai/internal/tracing"
	"szenai/pkg/waha/types"
)

// Config holds the fixed connection settings of a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	Session    string
	Timeout    time.Duration // per attempt
	RetryCount int
	RetryDelay time.Duration

	// BreakerMaxFailures is the number of consecutive transient failures that
	// opens the circuit. Zero disables the breaker.
	BreakerMaxFailures int
	BreakerTimeout     time.Duration
}

// DefaultConfig returns the standard timeouts and retry policy for baseURL.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:            baseURL,
		APIKey:             apiKey,
		Session:            constants.DefaultSessionName,
		Timeout:            constants.DefaultUpstreamTimeoutSec * time.Second,
		RetryCount:         constants.DefaultUpstreamRetryCount,
		RetryDelay:         constants.DefaultUpstreamRetryDelayMs * time.Millisecond,
		BreakerMaxFailures: constants.DefaultBreakerMaxFailures,
		BreakerTimeout:     constants.DefaultBreakerTimeoutSec * time.Second,
	}
}

// Client issues authenticated calls to one WAHA session.
type Client struct {
	baseURL    string
	apiKey     string
	session    string
	httpClient *http.Client
	backoff    *retry.Backoff
	breaker    *gobreaker.CircuitBreaker[*response]
	logger     *logrus.Logger
	metrics    *metrics.Metrics
	mask       privacy.Masker
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. Its Timeout is left as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithVerboseLogging logs chat and message ids unmasked.
func WithVerboseLogging(verbose bool) Option {
	return func(c *Client) { c.mask = privacy.Masker{Verbose: verbose} }
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid WAHA base URL")
	}
	if cfg.Session == "" {
		cfg.Session = constants.DefaultSessionName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultUpstreamTimeoutSec * time.Second
	}

	c := &Client{
		baseURL:    base.String(),
		apiKey:     cfg.APIKey,
		session:    cfg.Session,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		backoff:    retry.NewBackoff(retry.FixedDelayConfig(cfg.RetryCount, cfg.RetryDelay)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.SetOutput(io.Discard)
	}

	if cfg.BreakerMaxFailures > 0 {
		maxFailures := uint32(cfg.BreakerMaxFailures)
		logger := c.logger
		c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
			Name:        "waha",
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					constants.LogFieldComponent: name,
					"from":                      from.String(),
					"to":                        to.String(),
				}).Warn("Upstream circuit breaker state changed")
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !IsRetryable(err)
			},
		})
	}

	return c, nil
}

// Session returns the WAHA session name.
func (c *Client) Session() string { return c.session }

// call describes one logical upstream operation. path is already escaped and
// relative to the base URL.
type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   interface{}
	raw    []byte
	header http.Header
	retry  bool
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) sessionPath(rest string) string {
	return types.APIBase + "/" + url.PathEscape(c.session) + rest
}

func (c *Client) chatPath(chatID, rest string) string {
	return c.sessionPath("/chats/" + url.PathEscape(chatID) + rest)
}

func (c *Client) messagePath(chatID, messageID, rest string) string {
	return c.chatPath(chatID, "/messages/"+url.PathEscape(messageID)+rest)
}

// do runs cl with the configured retry policy and returns the last response.
func (c *Client) do(ctx context.Context, cl call) (*response, error) {
	payload := cl.raw
	if cl.body != nil {
		var err error
		payload, err = json.Marshal(cl.body)
		if err != nil {
			return nil, &RequestSetupError{Operation: cl.op, Cause: err}
		}
	}

	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	retryable := IsRetryable
	if !cl.retry {
		retryable = func(error) bool { return false }
	}

	var resp *response
	err := c.backoff.RetryNotify(ctx, func() error {
		var err error
		resp, err = c.attempt(ctx, cl, target, payload)
		return err
	}, retryable, func(attempt int, err error, delay time.Duration) {
		c.metrics.UpstreamRetry(cl.op)
		c.logger.WithFields(logrus.Fields{
			constants.LogFieldOperation: cl.op,
			constants.LogFieldAttempt:   attempt,
			"retry_in_ms":               delay.Milliseconds(),
		}).WithError(err).Warn("Retrying upstream call")
	})
	return resp, err
}

func (c *Client) attempt(ctx context.Context, cl call, target string, payload []byte) (*response, error) {
	ctx, span := tracing.StartSpan(ctx, "waha."+cl.op,
		attribute.String("waha.operation", cl.op),
		attribute.String("http.request.method", cl.method),
	)
	defer span.End()
	start := time.Now()

	var bodyReader io.Reader
	if len(payload) > 0 {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, target, bodyReader)
	if err != nil {
		setupErr := &RequestSetupError{Operation: cl.op, Cause: errors.New("invalid request target")}
		c.finish(ctx, cl, start, "setup_error", 0, setupErr)
		return nil, setupErr
	}
	for k, vs := range cl.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if len(payload) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	tracing.InjectHeaders(ctx, propagation.HeaderCarrier(req.Header))

	exec := func() (*response, error) {
		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, newTransportError(cl.op, err)
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(httpResp.Body, constants.MaxUpstreamBodyBytes))
		if err != nil {
			return nil, newTransportError(cl.op, err)
		}
		resp := &response{status: httpResp.StatusCode, header: httpResp.Header, body: body}
		if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
			return resp, &UpstreamError{
				Operation:  cl.op,
				StatusCode: httpResp.StatusCode,
				Body:       body,
				Header:     httpResp.Header,
			}
		}
		return resp, nil
	}

	var resp *response
	if c.breaker != nil {
		resp, err = c.breaker.Execute(exec)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = newTransportError(cl.op, err)
		}
	} else {
		resp, err = exec()
	}

	status := 0
	if resp != nil {
		status = resp.status
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	c.finish(ctx, cl, start, outcome(err), status, err)
	return resp, err
}

func (c *Client) finish(ctx context.Context, cl call, start time.Time, result string, status int, err error) {
	duration := time.Since(start)
	c.metrics.ObserveUpstream(cl.op, result, duration)

	entry := c.logger.WithFields(logrus.Fields{
		constants.LogFieldOperation:  cl.op,
		constants.LogFieldMethod:     cl.method,
		constants.LogFieldStatusCode: status,
		constants.LogFieldDuration:   duration.Milliseconds(),
		constants.LogFieldRequestID:  tracing.RequestID(ctx),
	})
	if err == nil {
		entry.Debug("Upstream call completed")
		return
	}
	tracing.RecordError(ctx, err)
	var te *TransportError
	if errors.As(err, &te) && te.Cause != nil {
		entry = entry.WithField("cause", te.Cause.Error())
	}
	entry.WithError(err).Debug("Upstream call failed")
}

func outcome(err error) string {
	var te *TransportError
	var ue *UpstreamError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &te) && te.CircuitOpen:
		return "circuit_open"
	case errors.As(err, &te):
		return "transport_error"
	case errors.As(err, &ue):
		return "upstream_error"
	default:
		return "setup_error"
	}
}

func malformed(op string, resp *response, reason error) *UpstreamError {
	return &UpstreamError{
		Operation:  op,
		StatusCode: http.StatusBadGateway,
		Body:       resp.body,
		Header:     resp.header,
		Malformed:  true,
		Reason:     reason.Error(),
	}
}

// actionResult normalises the body of a mutation. WAHA answers some
// mutations with an empty or plain-text body.
func actionResult(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage(`{"success":true}`)
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	wrapped, _ := json.Marshal(map[string]interface{}{"success": true, "result": string(trimmed)})
	return wrapped
}
