package analysis

import (
	stderrors "errors"

	"resumeform/internal/config"
	"resumeform/internal/errors"
	"resumeform/internal/types"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards analysis calls. A nil *CircuitBreaker passes calls straight through.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker[*types.AnalysisResult]
}

// NewCircuitBreaker returns nil when the breaker is disabled
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig, logger *errors.Logger) *CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = errors.Discard()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// Rejected input says nothing about the service's health.
			return err == nil || errors.IsType(err, errors.ErrorTypeValidation)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
				"max_requests", cfg.MaxRequests,
				"failure_threshold", cfg.FailureThreshold)
		},
	}

	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker[*types.AnalysisResult](settings)}
}

// Execute runs fn under the breaker. An open breaker fails fast with CIRCUIT_OPEN.
func (cb *CircuitBreaker) Execute(fn func() (*types.AnalysisResult, error)) (*types.AnalysisResult, error) {
	if cb == nil || cb.cb == nil {
		return fn()
	}

	result, err := cb.cb.Execute(fn)
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.NewNetworkError(errors.ErrCodeCircuitOpen,
			"analysis service is temporarily unavailable", err).
			WithContext("breaker", cb.cb.Name())
	}
	return result, err
}

// Stats reports breaker state for /stats
func (cb *CircuitBreaker) Stats() map[string]any {
	if cb == nil || cb.cb == nil {
		return map[string]any{"enabled": false}
	}

	counts := cb.cb.Counts()
	return map[string]any{
		"enabled": true,
		"name":    cb.cb.Name(),
		"state":   cb.cb.State().String(),
		"counts": map[string]uint32{
			"requests":              counts.Requests,
			"total_successes":       counts.TotalSuccesses,
			"total_failures":        counts.TotalFailures,
			"consecutive_successes": counts.ConsecutiveSuccesses,
			"consecutive_failures":  counts.ConsecutiveFailures,
		},
	}
}

// IsHealthy reports whether calls are currently allowed through
func (cb *CircuitBreaker) IsHealthy() bool {
	if cb == nil || cb.cb == nil {
		return true
	}
	return cb.cb.State() == gobreaker.StateClosed
}
