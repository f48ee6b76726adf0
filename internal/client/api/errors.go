package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNetwork wraps transport-level failures (DNS, refused, reset, timeout)
var ErrNetwork = errors.New("network error")

// HTTPError is a non-2xx response from the server
type HTTPError struct {
	Code       string
	Message    string
	StatusCode int
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus returns the response status code
func (e *HTTPError) HTTPStatus() int {
	return e.StatusCode
}

// RetryDelay returns the delay requested by Retry-After, zero if none
func (e *HTTPError) RetryDelay() time.Duration {
	return e.RetryAfter
}

func parseRetryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := time.Parse(time.RFC1123, header); err == nil {
		if delta := ts.Sub(now); delta > 0 {
			return delta
		}
	}
	return 0
}
