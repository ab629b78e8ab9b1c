package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrNotInitialized is returned when a store is used before Init
	ErrNotInitialized = goerr.New("store is not initialized")

	// ErrDimensionMismatch is returned when an embedding does not match the store dimension
	ErrDimensionMismatch = goerr.New("embedding dimension mismatch")

	// ErrToolTimeout is returned when an external tool call exceeds its deadline
	ErrToolTimeout = goerr.New("tool call timed out")

	// ErrToolError is returned when an external tool call fails
	ErrToolError = goerr.New("tool call failed")

	// ErrPlanningFailure indicates the reasoning oracle returned nothing usable.
	// Recovered locally by falling back to the default agent.
	ErrPlanningFailure = goerr.New("mission planning failed")

	// ErrSynthesisFailure indicates the reasoning oracle was unreachable during
	// reduction. Recovered locally with fixed fallback text.
	ErrSynthesisFailure = goerr.New("mission synthesis failed")

	// ErrIndexDegraded indicates the re-ranker is unavailable and search
	// continues in non-reranked mode. Logged, never fatal.
	ErrIndexDegraded = goerr.New("re-ranking index degraded")
)
