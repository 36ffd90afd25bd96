package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrInvalidConfig is returned by New when the configuration cannot be used.
	ErrInvalidConfig = errors.New("invalid client config")
)

// maxErrorBody bounds how much of a failed response body is kept on a RequestError.
const maxErrorBody = 4096

// RequestError is returned for every failed exchange with a remote endpoint:
// transport failures (StatusCode 0) and non-2xx responses alike.
type RequestError struct {
	URL        string
	StatusCode int
	Status     string
	Body       []byte
	Class      ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error requesting %s: %v", e.Class, e.URL, e.Err)
	}
	return fmt.Sprintf("%s error (status %d) requesting %s: %s",
		e.Class, e.StatusCode, e.URL, e.Status)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsRequestError reports whether err is, or wraps, a *RequestError.
func IsRequestError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr)
}

// StatusCode extracts the HTTP status from a wrapped *RequestError.
// Returns 0 when err carries no status.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}

func truncateBody(body []byte) []byte {
	if len(body) <= maxErrorBody {
		return body
	}
	return body[:maxErrorBody]
}
