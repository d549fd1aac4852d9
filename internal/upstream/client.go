package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/readr-media/readr-bff/internal/apierror"
	"github.com/readr-media/readr-bff/internal/observability"
	"github.com/readr-media/readr-bff/internal/transform"
)

const tracerName = "readr-bff/upstream"

// Default bounds for Forward.
const (
	DefaultResponseTimeout = 5 * time.Second
	DefaultDeadline        = 60 * time.Second
)

// Upstream call outcomes used as metric labels.
const (
	OutcomeSuccess        = "success"
	OutcomeStatusError    = "status_error"
	OutcomeTransportError = "transport_error"
)

// ErrNoBaseURL indicates a client constructed without a base URL.
var ErrNoBaseURL = errors.New("upstream base URL is required")

// MetricsRecorder receives upstream call latencies.
type MetricsRecorder interface {
	RecordUpstream(method, outcome string, duration time.Duration)
}

// Response is a fully read upstream response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Config holds the upstream client settings.
type Config struct {
	// BaseURL is protocol://host:port with no trailing slash.
	BaseURL string
	// ResponseTimeout bounds the wait for response headers on Forward.
	ResponseTimeout time.Duration
	// Deadline bounds the whole Forward call, body included.
	Deadline time.Duration
}

// Client talks to the upstream API.
type Client struct {
	baseURL  string
	deadline time.Duration

	forward *http.Client
	fetch   *http.Client

	breaker *Breaker
	metrics MetricsRecorder
	logger  *zap.Logger
	tracer  trace.Tracer
}

// Option is a functional option for the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the latency recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithBreaker guards every call with b.
func WithBreaker(b *Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithTracerProvider sets the tracer provider used for client spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// New creates an upstream client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}

	c := &Client{
		baseURL:  trimSlash(cfg.BaseURL),
		deadline: cfg.Deadline,
		forward:  &http.Client{Transport: newTransport(cfg.ResponseTimeout)},
		fetch:    &http.Client{Transport: newTransport(0)},
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newTransport returns a pooled transport. A zero responseTimeout leaves
// the header wait unbounded.
func newTransport(responseTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: responseTimeout,
	}
}

// BaseURL joins protocol, host and port into a base URL.
func BaseURL(protocol, host string, port int) string {
	if protocol == "" {
		protocol = "http"
	}
	return protocol + "://" + host + ":" + strconv.Itoa(port)
}

// URL returns the absolute upstream URL for path, which may carry a query.
func (c *Client) URL(path string) string {
	return c.baseURL + path
}

// Forward sends method to path with body and returns the raw response.
// Non-GET requests are sent as JSON. The call is bounded by the
// configured response timeout and deadline.
func (c *Client) Forward(ctx context.Context, method, path string, body []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("build upstream request: %w", err))
	}
	if method != http.MethodGet && method != http.MethodHead {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.do(ctx, c.forward, req)
}

// Fetch GETs path and returns the JSON body with camelized keys. No time
// bound is applied beyond what ctx carries.
func (c *Client) Fetch(ctx context.Context, path string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("build upstream request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(ctx, c.fetch, req)
	if err != nil {
		c.logger.Error("error during fetch data from upstream",
			zap.String("url", req.URL.String()),
			zap.Error(err),
		)
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, apierror.Internal(fmt.Errorf("decode upstream body from %s: %w", req.URL, err))
	}
	return transform.CamelizeKeys(decoded), nil
}

// do executes req, under the breaker when one is configured, and records
// a span and a latency sample.
func (c *Client) do(ctx context.Context, client *http.Client, req *http.Request) (*Response, error) {
	url := req.URL.String()

	ctx, span := c.tracer.Start(ctx, "upstream "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", url),
		),
	)
	defer span.End()
	req = req.WithContext(ctx)
	observability.InjectTraceContext(ctx, req)

	start := time.Now()
	call := func() (*Response, error) {
		return c.roundTrip(client, req, url)
	}

	var resp *Response
	var err error
	if c.breaker != nil {
		resp, err = c.breaker.execute(url, call)
	} else {
		resp, err = call()
	}

	outcome := OutcomeSuccess
	switch {
	case err == nil:
	case apierror.KindOf(err) == apierror.KindUpstreamStatus:
		outcome = OutcomeStatusError
	default:
		outcome = OutcomeTransportError
	}
	if c.metrics != nil {
		c.metrics.RecordUpstream(req.Method, outcome, time.Since(start))
	}

	if resp != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return resp, err
	}
	return resp, nil
}

func (c *Client) roundTrip(client *http.Client, req *http.Request, url string) (*Response, error) {
	httpResp, err := client.Do(req)
	if err != nil {
		return nil, apierror.Transport(url, withContextCause(req.Context(), err))
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apierror.Transport(url, withContextCause(req.Context(), err))
	}

	resp := &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   body,
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return resp, apierror.UpstreamStatus(url, httpResp.StatusCode, string(body))
	}
	return resp, nil
}

// withContextCause keeps an expired request deadline visible in err, since a
// body read interrupted by it does not always report it.
func withContextCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
