package ari

import (
	"errors"
	"strconv"
	"time"
)

// RequestError is a non-2xx response from the ARI endpoint.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return "ari " + e.Method + " " + e.Path + " status " + strconv.Itoa(e.StatusCode) + ": " + e.Body
}

// IsRetryable classifies whether a driver failure is worth one more attempt.
// Transport-level failures are retryable; definitive rejections are not.
func IsRetryable(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		default:
			return false
		}
	}
	// Connection resets, timeouts and the like.
	return err != nil
}

// Backoff computes a deterministic capped backoff for reconnect loops.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
