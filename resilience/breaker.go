package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-delivery/core"
	goerrors "github.com/goliatone/go-errors"
	"github.com/sony/gobreaker"
)

type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	FailureRatio        float64
	MinRequests         uint32
}

// DefaultBreakerConfig is tuned for external HTTP endpoints: fast failure
// detection with a short recovery probe window.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         3,
		Interval:            2 * time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         10,
	}
}

// CircuitOpenError signals that the breaker rejected the call without
// touching the endpoint.
type CircuitOpenError struct {
	Name string
	Err  error
}

func (e CircuitOpenError) Error() string {
	return fmt.Sprintf("resilience: circuit for %q is open: %v", e.Name, e.Err)
}

func (e CircuitOpenError) Unwrap() error {
	return e.Err
}

func (e CircuitOpenError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryExternal).
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(core.DeliveryErrorCircuitOpen).
		WithMetadata(map[string]any{"breaker": strings.TrimSpace(e.Name)})
}

type Breaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
}

func NewBreaker(name string, config BreakerConfig) *Breaker {
	if config.MaxRequests == 0 {
		config = DefaultBreakerConfig()
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= config.ConsecutiveFailures ||
				(counts.Requests >= config.MinRequests && failureRatio >= config.FailureRatio)
		},
	}
	return &Breaker{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Execute runs fn through the breaker. Failures include transport errors and
// exhausted retry runs; an open breaker returns CircuitOpenError without
// invoking fn.
func (b *Breaker) Execute(fn func() (core.TransportResponse, error)) (core.TransportResponse, error) {
	if b == nil || b.breaker == nil {
		return core.TransportResponse{}, fmt.Errorf("resilience: breaker is not configured")
	}
	result, err := b.breaker.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return core.TransportResponse{}, CircuitOpenError{Name: b.name, Err: err}
	}
	response, _ := result.(core.TransportResponse)
	return response, err
}

func (b *Breaker) State() string {
	if b == nil || b.breaker == nil {
		return "unknown"
	}
	return b.breaker.State().String()
}

// BreakerRegistry lazily creates one breaker per key, typically the endpoint
// host, so a failing endpoint cannot open the circuit for healthy ones.
type BreakerRegistry struct {
	config BreakerConfig

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

func NewBreakerRegistry(config BreakerConfig) *BreakerRegistry {
	if config.MaxRequests == 0 {
		config = DefaultBreakerConfig()
	}
	return &BreakerRegistry{
		config:   config,
		breakers: map[string]*Breaker{},
	}
}

func (r *BreakerRegistry) GetOrCreate(key string) *Breaker {
	key = strings.TrimSpace(strings.ToLower(key))

	r.mu.RLock()
	breaker, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		return breaker
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if breaker, ok = r.breakers[key]; ok {
		return breaker
	}
	breaker = NewBreaker(key, r.config)
	r.breakers[key] = breaker
	return breaker
}

func (r *BreakerRegistry) States() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	states := make(map[string]string, len(r.breakers))
	for key, breaker := range r.breakers {
		states[key] = breaker.State()
	}
	return states
}
