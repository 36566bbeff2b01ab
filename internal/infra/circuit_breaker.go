package infra

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ── Circuit Breaker ───────────────────────────────────────────────────────────
// Closed → Open → Half-Open. Guards the receipt printer so a jammed or
// unplugged device fails fast instead of stalling every sale.
//
// States:
//   - Closed:    calls pass through
//   - Open:      calls fail immediately with ErrCircuitOpen
//   - Half-Open: calls pass through as probes; enough successes close it

type CBState int

const (
	CBClosed CBState = iota
	CBOpen
	CBHalfOpen
)

// String is used by the health endpoint and in logs.
func (s CBState) String() string {
	switch s {
	case CBClosed:
		return "closed"
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int           // consecutive failures that trip it (default 3)
	SuccessThreshold int           // half-open successes that close it (default 1)
	OpenTimeout      time.Duration // wait before probing (default 30s)
}

type CircuitBreaker struct {
	mu               sync.Mutex
	name             string
	state            CBState
	failureCount     int
	successCount     int
	openedAt         time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	now              func() time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:             cfg.Name,
		state:            CBClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		openTimeout:      cfg.OpenTimeout,
		now:              time.Now,
	}
}

func (cb *CircuitBreaker) State() CBState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentLocked()
}

// currentLocked moves open → half-open once the timeout elapsed.
func (cb *CircuitBreaker) currentLocked() CBState {
	if cb.state == CBOpen && cb.now().Sub(cb.openedAt) >= cb.openTimeout {
		cb.transitionLocked(CBHalfOpen)
	}
	return cb.state
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	state := cb.currentLocked()
	cb.mu.Unlock()
	if state == CBOpen {
		return ErrCircuitOpen
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.onFailureLocked()
		return err
	}
	cb.onSuccessLocked()
	return nil
}

func (cb *CircuitBreaker) onFailureLocked() {
	cb.failureCount++
	switch cb.state {
	case CBClosed:
		if cb.failureCount >= cb.failureThreshold {
			cb.transitionLocked(CBOpen)
		}
	case CBHalfOpen:
		cb.transitionLocked(CBOpen)
	}
}

func (cb *CircuitBreaker) onSuccessLocked() {
	switch cb.state {
	case CBClosed:
		cb.failureCount = 0
	case CBHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.transitionLocked(CBClosed)
		}
	}
}

func (cb *CircuitBreaker) transitionLocked(to CBState) {
	from := cb.state
	cb.state = to
	cb.failureCount = 0
	cb.successCount = 0
	if to == CBOpen {
		cb.openedAt = cb.now()
	}
	log.Warn().
		Str("breaker", cb.name).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("circuit breaker state changed")
}
