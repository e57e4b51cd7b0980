package api

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxAutoRetries is the number of automatic re-attempts after the first try.
const maxAutoRetries = 2

// maxBackoffInterval caps the exponential backoff between attempts.
const maxBackoffInterval = 10 * time.Second

// retryableStatus lists the transient statuses worth retrying.
var retryableStatus = map[int]bool{
	http.StatusRequestTimeout:      true, // 408
	http.StatusTooManyRequests:     true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
}

// methodRetryable reports whether a method is safe to auto-retry. POST is
// excluded: the service's create endpoints are not idempotent.
func methodRetryable(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

// retryableError wraps a response that should be retried so backoff.Retry
// drives another attempt.
type retryableError struct {
	resp *Response
}

func (e *retryableError) Error() string { return "retryable status" }

// withRetry runs attempt with exponential backoff for transient statuses on
// idempotent methods. Network errors and non-retryable statuses surface
// immediately; the final retryable response is returned as-is once the
// budget is spent.
func withRetry(ctx context.Context, method string, attempt func() (*Response, error)) (*Response, error) {
	if !methodRetryable(method) {
		return attempt()
	}

	var last *Response
	op := func() (*Response, error) {
		resp, err := attempt()
		if err != nil {
			// Transport failures are not retried here: the caller sees the
			// first NetworkError and can decide what to do.
			return nil, backoff.Permanent(err)
		}
		if retryableStatus[resp.Status] {
			last = resp
			return nil, &retryableError{resp: resp}
		}
		return resp, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = maxBackoffInterval
	resp, err := backoff.RetryWithData(op,
		backoff.WithContext(backoff.WithMaxRetries(policy, maxAutoRetries), ctx))
	if err != nil {
		if _, ok := err.(*retryableError); ok && last != nil {
			// Budget exhausted; hand back the last response so the caller
			// reports the real status.
			return last, nil
		}
		return nil, err
	}
	return resp, nil
}
