package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errUpstream = errors.New("upstream 500")

func newBreaker(t *testing.T, cfg Config) *CircuitBreaker {
	t.Helper()
	cb, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return cb
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.FailureThreshold = 3
	cfg.Timeout = time.Hour
	cb := newBreaker(t, cfg)
	ctx := context.Background()

	calls := 0
	failing := func(context.Context) (string, error) {
		calls++
		return "", errUpstream
	}

	for i := 0; i < 3; i++ {
		_, err := Do(ctx, cb, failing)
		assert.ErrorIs(t, err, errUpstream)
	}
	assert.Equal(t, StateOpen, cb.State())

	_, err := Do(ctx, cb, failing)
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 3, calls, "open circuit must not call upstream")
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	cfg := DefaultConfig("recover")
	cfg.FailureThreshold = 1
	cfg.Timeout = 50 * time.Millisecond
	cb := newBreaker(t, cfg)
	ctx := context.Background()

	_, err := Do(ctx, cb, func(context.Context) (int, error) { return 0, errUpstream })
	require.ErrorIs(t, err, errUpstream)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(80 * time.Millisecond)

	v, err := Do(ctx, cb, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	errBadInput := errors.New("bad input")
	cfg := DefaultConfig("client-errors")
	cfg.FailureThreshold = 1
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, errBadInput)
	}
	cb := newBreaker(t, cfg)

	for i := 0; i < 5; i++ {
		_, err := Do(context.Background(), cb, func(context.Context) (int, error) { return 0, errBadInput })
		assert.ErrorIs(t, err, errBadInput)
	}
	assert.Equal(t, StateClosed, cb.State())
}
