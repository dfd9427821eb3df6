package inference

import "errors"

// Transport error taxonomy. Callers branch with errors.Is; the three cases are
// never collapsed into a generic failure.
var (
	// ErrImageNotFound: the backend could not fetch the referenced image.
	ErrImageNotFound = errors.New("inference: image not found")
	// ErrUnreachable: connection failure, timeout, 5xx, or an open breaker.
	ErrUnreachable = errors.New("inference: backend unreachable")
	// ErrMalformedResponse: the backend answered but the payload is unusable.
	ErrMalformedResponse = errors.New("inference: malformed response")
)

// IsTransport reports whether err belongs to the transport taxonomy above.
func IsTransport(err error) bool {
	return errors.Is(err, ErrImageNotFound) ||
		errors.Is(err, ErrUnreachable) ||
		errors.Is(err, ErrMalformedResponse)
}
