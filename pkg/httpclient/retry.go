package httpclient

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// retryTransport wraps a RoundTripper with exponential backoff: idempotent
// requests (GET/HEAD/OPTIONS) are retried on a 5xx/408/429 response or a
// transient network error, up to cfg.RetryAttempts times. Non-idempotent
// methods are retried too only if cfg.AllowNonIdempotentRetry is set.
type retryTransport struct {
	base        http.RoundTripper
	attempts    int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	retryUnsafe bool
}

func newRetryTransport(base http.RoundTripper, cfg Config) *retryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &retryTransport{
		base:        base,
		attempts:    cfg.RetryAttempts + 1,
		baseBackoff: cfg.RetryBackoff,
		maxBackoff:  cfg.MaxBackoff,
		retryUnsafe: cfg.AllowNonIdempotentRetry,
	}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.retryUnsafe && !isIdempotentMethod(req.Method) {
		return t.base.RoundTrip(req)
	}

	var lastErr error
	var lastResp *http.Response
	for attempt := 1; attempt <= t.attempts; attempt++ {
		if attempt > 1 {
			if err := t.wait(req, attempt-1, lastResp); err != nil {
				return nil, err
			}
		}

		resp, err := t.base.RoundTrip(req)
		if err == nil && !shouldRetryStatus(resp.StatusCode) {
			return resp, nil
		}

		lastErr, lastResp = err, resp
		if err != nil && !isRetryableError(err) {
			return nil, err
		}
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return lastResp, nil
}

// wait blocks for the backoff delay before a retry, capped by any
// Retry-After header on the previous response, or returns the request
// context's error if it's cancelled first.
func (t *retryTransport) wait(req *http.Request, completedAttempts int, prevResp *http.Response) error {
	delay := backoffDelay(completedAttempts, t.baseBackoff, t.maxBackoff)
	if prevResp != nil {
		if retryAfter := parseRetryAfter(prevResp); retryAfter > 0 && retryAfter < delay {
			delay = retryAfter
		}
	}
	select {
	case <-time.After(delay):
		return nil
	case <-req.Context().Done():
		return req.Context().Err()
	}
}

func isIdempotentMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func shouldRetryStatus(statusCode int) bool {
	switch {
	case statusCode >= 500 && statusCode < 600:
		return true
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

var transientErrorSubstrings = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network unreachable",
	"temporary failure in name resolution",
	"eof",
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && (netErr.Timeout() || netErr.Temporary()) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isRetryableError(urlErr.Err)
	}

	msg := strings.ToLower(err.Error())
	for _, substr := range transientErrorSubstrings {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// backoffDelay is baseBackoff * 2^(completedAttempts-1), capped at
// maxBackoff, plus up to 20% jitter so concurrent retries don't land in
// lockstep against the same upstream.
func backoffDelay(completedAttempts int, baseBackoff, maxBackoff time.Duration) time.Duration {
	delay := float64(baseBackoff) * math.Pow(2, float64(completedAttempts-1))
	if delay > float64(maxBackoff) {
		delay = float64(maxBackoff)
	}
	jitter := rand.Float64() * delay * 0.2
	return time.Duration(delay + jitter)
}

// parseRetryAfter reads a Retry-After header in either seconds or
// HTTP-date form, returning 0 if absent, malformed, or already past.
func parseRetryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if delay := time.Until(at); delay > 0 {
			return delay
		}
	}
	return 0
}
