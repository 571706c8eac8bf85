package model

import "fmt"

// InvalidModelError is returned when an embedding model name is not
// present in the dimension policy table.
type InvalidModelError struct {
	ModelName string
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("unsupported embedding model %q", e.ModelName)
}

// InvalidModelDimensions is returned when a dimension override is
// requested for a model that does not support overriding its native
// dimension.
type InvalidModelDimensions struct {
	Model              string
	Dimensions         int
	ExpectedDimensions int
}

func (e *InvalidModelDimensions) Error() string {
	return fmt.Sprintf(
		"model %q does not support overriding its native dimensions of %d: found %d",
		e.Model, e.ExpectedDimensions, e.Dimensions,
	)
}

// UnsupportedDimensionError is returned when a dimension override is
// requested that is not in the model's allowed-dimensions list.
type UnsupportedDimensionError struct {
	Model              string
	Dimensions         int
	AllowedDimensions  []int
}

func (e *UnsupportedDimensionError) Error() string {
	return fmt.Sprintf(
		"model %q only supports dimensions from %v: found %d",
		e.Model, e.AllowedDimensions, e.Dimensions,
	)
}

// EmbeddingSizeMismatchError is returned when the embedding endpoint's
// response does not contain exactly one vector per input text.
type EmbeddingSizeMismatchError struct {
	InputSize int
	EmbedSize int
}

func (e *EmbeddingSizeMismatchError) Error() string {
	return fmt.Sprintf(
		"input length %d and generated embeddings length %d do not match",
		e.InputSize, e.EmbedSize,
	)
}

// RateLimitError is returned when the embedding endpoint responds with
// HTTP 429. It is never retried locally; the caller (the queue) decides
// whether to retry the enclosing job.
type RateLimitError struct{}

func (e *RateLimitError) Error() string {
	return "embedding provider rate limit reached, try again later"
}

// EmbeddingResponseError is returned for any non-2xx, non-429 response
// from the embedding endpoint.
type EmbeddingResponseError struct {
	StatusCode int
}

func (e *EmbeddingResponseError) Error() string {
	return fmt.Sprintf("embedding endpoint returned status code %d", e.StatusCode)
}

// EmbeddingRequestError wraps a transport-level failure (connection
// reset, DNS failure, timeout) encountered while calling the embedding
// endpoint.
type EmbeddingRequestError struct {
	Inner error
}

func (e *EmbeddingRequestError) Error() string {
	return fmt.Sprintf("request to embedding endpoint failed: %v", e.Inner)
}

func (e *EmbeddingRequestError) Unwrap() error { return e.Inner }

// InvalidConnector is returned by a factory registry when asked to
// construct a connector family it does not recognize.
type InvalidConnector struct {
	Family    string
	Name      string
	Available []string
}

func (e *InvalidConnector) Error() string {
	return fmt.Sprintf(
		"unknown %s connector %q, available: %v", e.Family, e.Name, e.Available,
	)
}

// ConnectorError wraps a connector construction-time failure, such as
// a source connector failing to authenticate or head its bucket.
// These are fatal: the pipeline refuses to instantiate.
type ConnectorError struct {
	Connector string
	Reason    string
	Cause     error
}

func (e *ConnectorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Connector, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Connector, e.Reason)
}

func (e *ConnectorError) Unwrap() error { return e.Cause }
