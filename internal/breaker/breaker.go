// Package breaker keeps one circuit breaker per probe endpoint.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrOpen is returned by Do when the breaker for a key refuses the call.
var ErrOpen = errors.New("breaker: circuit open")

// Config configures every breaker in a Set.
type Config struct {
	// Failures is the number of consecutive failures that opens a circuit. Default: 5
	Failures uint32
	// Cooldown is how long an open circuit refuses calls before letting a
	// single trial call through. Default: 1m
	Cooldown time.Duration
	// IsFailure decides which errors count against the circuit.
	// Default: every non-nil error.
	IsFailure func(err error) bool
	Logger    *zap.Logger
}

// Set is a lazily populated collection of breakers keyed by endpoint.
// It is safe for concurrent use.
type Set struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func New(cfg Config) *Set {
	if cfg.Failures == 0 {
		cfg.Failures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Set{cfg: cfg, breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

// Do runs fn through the breaker for key. When the circuit is open fn is
// not called and the error wraps ErrOpen.
func (s *Set) Do(key string, fn func() error) error {
	var callErr error
	_, err := s.get(key).Execute(func() (interface{}, error) {
		callErr = fn()
		return nil, callErr
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrOpen, err)
	}
	// Errors the breaker treats as successes are still the caller's errors.
	return callErr
}

// State reports the state of the breaker for key. Unknown keys are closed.
func (s *Set) State(key string) gobreaker.State {
	s.mu.Lock()
	cb, ok := s.breakers[key]
	s.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

func (s *Set) get(key string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[key]; ok {
		return cb
	}
	failures := s.cfg.Failures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Timeout:     s.cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return !s.cfg.IsFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.cfg.Logger.Info("endpoint circuit state changed",
				zap.String("endpoint", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})
	s.breakers[key] = cb
	return cb
}
