package videogen

import "fmt"

// ErrorKind classifies normalization failures so callers can decide
// whether a failure is user-correctable or fatal to the segment.
type ErrorKind string

const (
	ErrUnsupportedDuration   ErrorKind = "unsupported_duration"
	ErrUnsupportedResolution ErrorKind = "unsupported_resolution"
	ErrMalformedInput        ErrorKind = "malformed_input"
	ErrCrossProviderField    ErrorKind = "cross_provider_field"
	ErrOutOfRange            ErrorKind = "out_of_range"
	ErrUnmappableResponse    ErrorKind = "unmappable_provider_response"
)

// ValidationError is a structural validation failure. It carries the
// offending field and the received value so the caller can surface it.
type ValidationError struct {
	Kind  ErrorKind
	Field string
	Value interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: field %q, got %v", e.Kind, e.Field, e.Value)
}

func newValidationError(kind ErrorKind, field string, value interface{}) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Value: value}
}

// ProviderNotFoundError is returned when an unknown provider is requested.
type ProviderNotFoundError struct {
	Provider string
}

func (e *ProviderNotFoundError) Error() string {
	return fmt.Sprintf("unknown video provider: %s", e.Provider)
}

// AuthenticationError is returned when provider authentication fails.
type AuthenticationError struct {
	Provider string
	Details  string
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("authentication failed for %s", e.Provider)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// RequestError is returned when a provider API call fails.
type RequestError struct {
	Provider   string
	StatusCode int
	Details    string
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("video generation request failed for %s", e.Provider)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// VideoNotFoundError is returned when a video ID is not found at the provider.
type VideoNotFoundError struct {
	Provider string
	VideoID  string
}

func (e *VideoNotFoundError) Error() string {
	return fmt.Sprintf("video not found: %s (provider: %s)", e.VideoID, e.Provider)
}

// TimeoutError is returned when polling for completion exceeds the deadline.
type TimeoutError struct {
	Provider string
	VideoID  string
	Timeout  float64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("video generation timed out after %.0fs: %s (provider: %s)",
		e.Timeout, e.VideoID, e.Provider)
}
