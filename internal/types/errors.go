package types

import "errors"

// Error kinds shared by the pipeline stages. Stages wrap these with
// fmt.Errorf("...: %w") and callers classify with errors.Is.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamError       = errors.New("upstream error")
	ErrEmptyResponse       = errors.New("empty response")
	ErrSessionNotFound     = errors.New("session not found")
)
