package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open and
	// the call was rejected without reaching the upstream.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRetriesExhausted is returned when all retry attempts failed.
	// The final underlying cause is wrapped alongside it.
	ErrRetriesExhausted = errors.New("resilience: retries exhausted")
)
