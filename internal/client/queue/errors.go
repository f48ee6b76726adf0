package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"
)

var (
	// ErrQueueClosed is returned by operations on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrNotFound indicates that no pending operation or dead letter has this ID
	ErrNotFound = errors.New("operation not found in queue")

	// ErrIDConflict indicates that ID is already used by an operation of another entity
	ErrIDConflict = errors.New("operation id already used by another entity")

	// ErrRejected is recorded when a dispatcher reports false without an error
	ErrRejected = errors.New("dispatcher did not apply operation")

	// ErrNoHandler is recorded when nothing can dispatch the entity
	ErrNoHandler = errors.New("no handler registered")
)

// ErrorClass таксономия ошибок отправки
type ErrorClass string

const (
	// ClassTransient network failure, 429 or 5xx: retried with backoff up to maxRetries
	ClassTransient ErrorClass = "transient"
	// ClassClient other 4xx: dropped immediately
	ClassClient ErrorClass = "client"
	// ClassIntegrity payload decode failure: kept and retried, will likely fail again
	ClassIntegrity ErrorClass = "integrity"
	// ClassUnclassified anything else: retried up to half of maxRetries
	ClassUnclassified ErrorClass = "unclassified"
)

// statusCoder is implemented by transport errors carrying an HTTP status
type statusCoder interface {
	HTTPStatus() int
}

// transienter is implemented by transport errors that are known to be retryable
type transienter interface {
	Transient() bool
}

// retryAfter is implemented by errors carrying a server-requested delay
type retryAfter interface {
	RetryDelay() time.Duration
}

// Classify maps a dispatch error onto the retry taxonomy
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrRejected) {
		return ClassTransient
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		status := sc.HTTPStatus()
		switch {
		case status == http.StatusTooManyRequests, status >= 500:
			return ClassTransient
		case status >= 400:
			return ClassClient
		}
	}

	var tr transienter
	if errors.As(err, &tr) && tr.Transient() {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ClassIntegrity
	}

	return ClassUnclassified
}

// retryLimit returns how many failed attempts an operation may accumulate
// for the given class before it is dropped. Zero means drop on first failure.
func retryLimit(class ErrorClass, maxRetries int) int {
	switch class {
	case ClassClient:
		return 0
	case ClassUnclassified:
		if half := maxRetries / 2; half > 0 {
			return half
		}
		return 1
	default:
		return maxRetries
	}
}
