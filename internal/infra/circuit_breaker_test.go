package infra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errJam = errors.New("paper jam")

func newTestBreaker(now *time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", FailureThreshold: 2, OpenTimeout: time.Minute})
	cb.now = func() time.Time { return *now }
	return cb
}

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&now)

	assert.ErrorIs(t, cb.Execute(func() error { return errJam }), errJam)
	assert.Equal(t, CBClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return errJam }), errJam)
	assert.Equal(t, CBOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&now)

	_ = cb.Execute(func() error { return errJam })
	assert.NoError(t, cb.Execute(func() error { return nil }))
	_ = cb.Execute(func() error { return errJam })
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&now)
	_ = cb.Execute(func() error { return errJam })
	_ = cb.Execute(func() error { return errJam })
	assert.Equal(t, CBOpen, cb.State())

	now = now.Add(time.Minute)
	assert.Equal(t, CBHalfOpen, cb.State())

	// A failed probe reopens.
	_ = cb.Execute(func() error { return errJam })
	assert.Equal(t, CBOpen, cb.State())

	now = now.Add(time.Minute)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBClosed, cb.State())
}

func TestCBState_String(t *testing.T) {
	assert.Equal(t, "closed", CBClosed.String())
	assert.Equal(t, "open", CBOpen.String())
	assert.Equal(t, "half-open", CBHalfOpen.String())
	assert.Equal(t, "unknown", CBState(9).String())
}
