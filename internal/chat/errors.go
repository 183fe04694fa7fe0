package chat

import "errors"

// ErrEmptyMessages is returned when a completion is requested with no turns.
var ErrEmptyMessages = errors.New("messages must not be empty")

// UpstreamError wraps a provider failure. Error() is deliberately generic:
// raw provider detail stays in logs and never crosses the HTTP boundary.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return "completion API failure"
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// WrapUpstream wraps a provider error into an UpstreamError. Errors that
// are already classified (or nil) pass through unchanged.
func WrapUpstream(err error) error {
	if err == nil {
		return nil
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return err
	}
	return &UpstreamError{Err: err}
}
