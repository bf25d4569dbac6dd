package generation

import (
	"context"
	"errors"
	"time"

	"character-studio/backend/pkg/logger"
	"character-studio/backend/pkg/resilience"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Metrics are the gateway's prometheus collectors
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	breaker  *prometheus.GaugeVec
}

// NewMetrics registers the collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Generation gateway calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "studio",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Generation gateway call latency.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"operation"}),
		breaker: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "studio",
			Subsystem: "generation",
			Name:      "circuit_open",
			Help:      "1 while the generation circuit breaker is open.",
		}, []string{"name"}),
	}
	reg.MustRegister(m.requests, m.duration, m.breaker)
	return m
}

// Protected guards a Generator with a circuit breaker and records metrics and spans
type Protected struct {
	next    Generator
	breaker *resilience.CircuitBreaker
	metrics *Metrics
	tracer  trace.Tracer
}

// NewProtected wraps next. Only remote-side failures count against the breaker.
func NewProtected(next Generator, metrics *Metrics, log *logger.Logger) *Protected {
	cfg := resilience.DefaultCircuitBreakerConfig("generation")
	cfg.IsFailure = isRemoteFailure
	cfg.OnStateChange = func(name string, to resilience.CircuitBreakerState) {
		if metrics == nil {
			return
		}
		v := 0.0
		if to == resilience.StateOpen {
			v = 1
		}
		metrics.breaker.WithLabelValues(name).Set(v)
	}

	return &Protected{
		next:    next,
		breaker: resilience.NewCircuitBreaker(cfg, log),
		metrics: metrics,
		tracer:  otel.Tracer("character-studio/generation"),
	}
}

// BreakerState reports whether calls are currently short-circuited
func (p *Protected) BreakerState() resilience.CircuitBreakerState {
	return p.breaker.GetState()
}

func isRemoteFailure(err error) bool {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Temporary()
	}
	// transport errors and unusable bodies
	return true
}

func (p *Protected) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	var res *TextResult
	err := p.call(ctx, "generate-text", []attribute.KeyValue{
		attribute.String("mood", string(req.Mood)),
		attribute.Int("scene_count", req.SceneCount),
	}, func(ctx context.Context) error {
		var err error
		res, err = p.next.GenerateText(ctx, req)
		return err
	})
	return res, err
}

func (p *Protected) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	var res *ImageResult
	err := p.call(ctx, "generate-image", []attribute.KeyValue{
		attribute.String("mood", string(req.Mood)),
	}, func(ctx context.Context) error {
		var err error
		res, err = p.next.GenerateImage(ctx, req)
		return err
	})
	return res, err
}

func (p *Protected) GenerateVideo(ctx context.Context, req VideoRequest) (*VideoResult, error) {
	var res *VideoResult
	err := p.call(ctx, "generate-video", []attribute.KeyValue{
		attribute.String("mood", string(req.Mood)),
		attribute.Int("duration", req.Duration),
	}, func(ctx context.Context) error {
		var err error
		res, err = p.next.GenerateVideo(ctx, req)
		return err
	})
	return res, err
}

func (p *Protected) call(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	err := p.breaker.Execute(func() error { return fn(ctx) })
	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = ErrUnavailable
	}

	if p.metrics != nil {
		outcome := "success"
		switch {
		case errors.Is(err, ErrUnavailable):
			outcome = "rejected"
		case err != nil:
			outcome = "error"
		}
		p.metrics.requests.WithLabelValues(op, outcome).Inc()
		p.metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
