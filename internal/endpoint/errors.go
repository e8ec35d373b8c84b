package endpoint

import (
	"errors"
	"fmt"
)

// Failure kinds of a manage endpoint round trip.
var (
	// ErrTransport means the request could not be sent or no response arrived.
	ErrTransport = errors.New("endpoint transport failure")
	// ErrMalformed means the response body was not a JSON envelope.
	ErrMalformed = errors.New("endpoint returned malformed response")
)

// BusinessError is returned when the endpoint answers success:false.
type BusinessError struct {
	Action  string
	Message string
}

func (e *BusinessError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed", e.Action)
	}
	return e.Message
}

// UserMessage returns the text to show an administrator for err.
func UserMessage(err error) string {
	var be *BusinessError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &be):
		if be.Message != "" {
			return be.Message
		}
		return "The server rejected the request."
	case errors.Is(err, ErrMalformed):
		return "The server returned an invalid response. Please try again."
	case errors.Is(err, ErrTransport):
		return "Could not reach the server. Check your connection and try again."
	default:
		return "An unexpected error occurred."
	}
}

// Outcome classifies err for metrics labels.
func Outcome(err error) string {
	var be *BusinessError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &be):
		return "rejected"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "error"
	}
}
