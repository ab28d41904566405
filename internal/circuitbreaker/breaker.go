// Package circuitbreaker оборачивает sony/gobreaker для вызовов внешних сервисов
// (AI-ассистент, OpenFDA): трассировка, счётчики otel и общие настройки.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrOpen - цепь разомкнута, вызов не выполнялся; можно повторить позже
var ErrOpen = errors.New("upstream temporarily unavailable")

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

type Config struct {
	Name string
	// MaxRequests - число пробных запросов в half-open
	MaxRequests uint32
	// Interval - период сброса счётчиков в closed
	Interval time.Duration
	// Timeout - время до перехода open -> half-open
	Timeout time.Duration
	// FailureThreshold - подряд идущих ошибок до размыкания
	FailureThreshold uint32
	// FailureRatio - доля ошибок до размыкания, учитывается после MinRequests
	FailureRatio float64
	MinRequests  uint32
	// IsSuccessful решает, считается ли ошибка сбоем сервиса. nil - любая ошибка сбой.
	IsSuccessful func(err error) bool
}

// DefaultConfig - настройки для внешних HTTP API
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		FailureRatio:     0.6,
		MinRequests:      10,
	}
}

// CircuitBreaker - gobreaker с трассировкой и метриками
type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger *zap.Logger
	tracer trace.Tracer

	requests metric.Int64Counter
	rejected metric.Int64Counter
	failures metric.Int64Counter

	stateMu sync.RWMutex
	state   State
}

func New(cfg Config, logger *zap.Logger) (*CircuitBreaker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	meter := otel.Meter("circuit-breaker")
	c := &CircuitBreaker{
		name:   cfg.Name,
		logger: logger,
		tracer: otel.Tracer("circuit-breaker"),
		state:  StateClosed,
	}

	var err error
	if c.requests, err = meter.Int64Counter("circuit_breaker_requests_total",
		metric.WithDescription("Total requests through circuit breaker")); err != nil {
		return nil, fmt.Errorf("create request counter: %w", err)
	}
	if c.rejected, err = meter.Int64Counter("circuit_breaker_rejected_total",
		metric.WithDescription("Requests rejected while the circuit was open")); err != nil {
		return nil, fmt.Errorf("create rejected counter: %w", err)
	}
	if c.failures, err = meter.Int64Counter("circuit_breaker_failures_total",
		metric.WithDescription("Failed upstream requests")); err != nil {
		return nil, fmt.Errorf("create failure counter: %w", err)
	}

	isSuccessful := cfg.IsSuccessful
	if isSuccessful == nil {
		isSuccessful = func(err error) bool { return err == nil }
	}

	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			c.onStateChange(from, to)
		},
		IsSuccessful: isSuccessful,
	})

	return c, nil
}

// Execute выполняет fn через предохранитель. При разомкнутой цепи возвращает ErrOpen.
func (c *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	ctx, span := c.tracer.Start(ctx, "circuit_breaker_execute",
		trace.WithAttributes(
			attribute.String("breaker_name", c.name),
			attribute.String("state", string(c.State())),
		))
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("name", c.name))
	c.requests.Add(ctx, 1, attrs)

	result, err := c.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.rejected.Add(ctx, 1, attrs)
			span.SetAttributes(attribute.Bool("circuit_open", true))
			return nil, fmt.Errorf("%s: %w", c.name, ErrOpen)
		}
		c.failures.Add(ctx, 1, attrs)
		return nil, err
	}

	return result, nil
}

// Do - типизированная обёртка над Execute
func Do[T any](ctx context.Context, c *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	res, err := c.Execute(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil || res == nil {
		return zero, err
	}
	return res.(T), nil
}

func (c *CircuitBreaker) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *CircuitBreaker) Counts() gobreaker.Counts {
	return c.cb.Counts()
}

func (c *CircuitBreaker) onStateChange(from, to gobreaker.State) {
	c.stateMu.Lock()
	c.state = mapState(to)
	c.stateMu.Unlock()

	c.logger.Warn("Circuit breaker state changed",
		zap.String("breaker", c.name),
		zap.String("from", string(mapState(from))),
		zap.String("to", string(mapState(to))))
}

func mapState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
