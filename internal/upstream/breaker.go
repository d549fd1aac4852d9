package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/readr-media/readr-bff/internal/apierror"
)

// Breaker defaults.
const (
	DefaultBreakerThreshold = 10
	DefaultBreakerTimeout   = 30 * time.Second
)

// BreakerStateFunc is called when the breaker changes state
// (0=closed, 1=half-open, 2=open).
type BreakerStateFunc func(name string, state int)

// BreakerConfig configures the upstream circuit breaker.
type BreakerConfig struct {
	// Name labels logs and metrics.
	Name string
	// Threshold is the minimum number of requests in an interval before the
	// failure ratio can trip the breaker.
	Threshold int
	// Timeout is both the counting interval and the open period.
	Timeout time.Duration
	// OnStateChange is notified of transitions.
	OnStateChange BreakerStateFunc
	// Logger receives transitions.
	Logger *zap.Logger
}

// Breaker wraps gobreaker. It counts transport failures and 5xx responses;
// it never retries.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker from cfg, applying defaults to zero fields.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "upstream"
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultBreakerThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBreakerTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	threshold := uint32(cfg.Threshold) //nolint:gosec // positive, checked above
	tracer := otel.Tracer(tracerName)

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    cfg.Timeout,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= threshold && ratio >= 0.5
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("upstream circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)

			_, span := tracer.Start(context.Background(), "upstream.breaker.state_change",
				trace.WithSpanKind(trace.SpanKindInternal))
			span.AddEvent("state_change", trace.WithAttributes(
				attribute.String("breaker.name", name),
				attribute.String("breaker.from", from.String()),
				attribute.String("breaker.to", to.String()),
			))
			span.End()

			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, int(to))
			}
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// countsAsSuccess keeps 4xx responses from tripping the breaker: the
// upstream answered, the caller was wrong.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var e *apierror.Error
	if errors.As(err, &e) && e.Kind == apierror.KindUpstreamStatus {
		return e.Status < 500
	}
	return false
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// execute runs fn under the breaker. A rejected call becomes a 503
// transport failure for url.
func (b *Breaker) execute(url string, fn func() (*Response, error)) (*Response, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apierror.Unavailable(url, err)
	}
	resp, _ := out.(*Response)
	return resp, err
}
