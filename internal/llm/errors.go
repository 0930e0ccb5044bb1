package llm

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when the model server answers 2xx with an
// empty or undecodable body.
var ErrEmptyResponse = errors.New("model server returned an empty response")

// HTTPError is a transport failure carrying the exact HTTP status received.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("model server returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("model server returned status %d", e.StatusCode)
}
