package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is returned for any response with status >= 400, carrying the
// decoded response body for error rendering.
type HTTPError struct {
	StatusCode int
	Status     string
	Details    json.RawMessage
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// DetailString returns the response body pretty-printed when it is JSON,
// or verbatim otherwise. Empty when the body was empty.
func (e *HTTPError) DetailString() string {
	if len(e.Details) == 0 {
		return ""
	}
	var decoded any
	if err := json.Unmarshal(e.Details, &decoded); err == nil {
		if pretty, err := json.MarshalIndent(decoded, "", "  "); err == nil {
			return string(pretty)
		}
	}
	return string(e.Details)
}

// IsNotFound reports whether err is an HTTPError with status 404.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an
// HTTPError.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
