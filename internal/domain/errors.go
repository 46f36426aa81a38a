package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is matched by provider errors caused by request volume.
	ErrRateLimited = errors.New("question provider rate limited")
	// ErrProviderUnavailable is matched by every other provider failure.
	ErrProviderUnavailable = errors.New("question provider unavailable")
	// ErrPersistenceCorrupt marks a persisted key that exists but cannot be parsed.
	ErrPersistenceCorrupt = errors.New("persisted snapshot corrupt")
	// ErrSessionFinished is returned when mutating a session that already finished.
	ErrSessionFinished = errors.New("quiz session already finished")
	// ErrNotInProgress is returned when the session is loading, failed or closed.
	ErrNotInProgress = errors.New("quiz session not in progress")
	// ErrIndexOutOfRange is returned when the current index has no question.
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrSessionClosed is returned once the profile logged out of the engine.
	ErrSessionClosed = errors.New("quiz session closed")
	// ErrUnauthenticated is returned when the profile has no sign-in marker.
	ErrUnauthenticated = errors.New("profile not authenticated")
)

// ProviderErrorKind classifies provider failures.
type ProviderErrorKind int

const (
	Unavailable ProviderErrorKind = iota
	RateLimited
)

func (k ProviderErrorKind) String() string {
	if k == RateLimited {
		return "rate_limited"
	}
	return "unavailable"
}

// ProviderError is returned by question providers.
type ProviderError struct {
	Kind ProviderErrorKind
	Err  error
}

// NewProviderError wraps cause with the given kind.
func NewProviderError(kind ProviderErrorKind, cause error) *ProviderError {
	return &ProviderError{Kind: kind, Err: cause}
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return e.sentinel().Error()
	}
	return fmt.Sprintf("%s: %v", e.sentinel(), e.Err)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

// Message is the user-facing text for the failure.
func (e *ProviderError) Message() string {
	if e.Kind == RateLimited {
		return "Too many requests have occurred. Please wait a few seconds and retry."
	}
	return "Questions could not be loaded. Please retry later."
}

func (e *ProviderError) sentinel() error {
	if e.Kind == RateLimited {
		return ErrRateLimited
	}
	return ErrProviderUnavailable
}
