package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned for a provider kind outside the supported set.
	ErrUnknownKind = errors.New("unknown provider kind")

	// ErrMissingAPIKey is returned when a vendor that requires a key has none.
	ErrMissingAPIKey = errors.New("api key not configured")

	// ErrMissingEndpoint is returned when a compatible provider has no endpoint.
	ErrMissingEndpoint = errors.New("endpoint url not configured")

	// ErrMissingModel is returned when no model name is set.
	ErrMissingModel = errors.New("model not configured")

	// ErrMalformedChunk is returned when a stream payload cannot be decoded.
	ErrMalformedChunk = errors.New("malformed stream chunk")
)

// APIError is a non-2xx response from a vendor.
type APIError struct {
	Provider   Kind
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// StreamError is an error event reported by the vendor inside the stream.
type StreamError struct {
	Provider Kind
	Type     string
	Message  string
}

func (e *StreamError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s stream error: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s stream error (%s): %s", e.Provider, e.Type, e.Message)
}

// IsConfigError reports whether err stems from an incomplete provider config.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMissingAPIKey) ||
		errors.Is(err, ErrMissingEndpoint) ||
		errors.Is(err, ErrMissingModel) ||
		errors.Is(err, ErrUnknownKind)
}

// IsMalformed reports whether err stems from an undecodable stream payload.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedChunk)
}
