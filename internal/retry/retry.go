// Package retry provides the backoff policy shared by every network
// operation in the commit pipeline: a bounded number of attempts with
// exponential, capped waits between them.
package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Defaults used when the corresponding Policy field is zero.
const (
	DefaultMaxAttempts = 5
	DefaultBaseWait    = 1 * time.Second
	DefaultMaxWait     = 8 * time.Second
)

// Operation performs one attempt. It must be safe to call repeatedly: any
// request body it sends has to be rewound to the same position before each
// call so resends are byte-identical.
type Operation func(ctx context.Context) (*http.Response, error)

// Policy describes when and how an Operation is retried.
// The zero value makes at most DefaultMaxAttempts attempts on transient
// errors and HTTP 503, with waits of 1s, 2s, 4s, 8s, capped at 8s.
type Policy struct {
	// MaxAttempts bounds the total number of calls, the first one included.
	MaxAttempts int
	BaseWait    time.Duration
	MaxWait     time.Duration

	// RetryableStatuses marks response codes that should be retried.
	// Nil means {503}.
	RetryableStatuses map[int]bool

	// RetryableError reports whether a transport-level error is transient.
	// Nil means IsTemporaryError.
	RetryableError func(error) bool

	// ResetConnections is invoked after a transport-level failure, before
	// the next attempt, so stale connection state is never reused. Wire it
	// to http.Client.CloseIdleConnections.
	ResetConnections func()

	// Sleep is replaceable in tests. Nil means time.Sleep (interruptible by
	// the context).
	Sleep func(time.Duration)
}

// Do runs op until it succeeds, fails non-retryably, or exhausts the policy.
// Exhaustion returns the last response or error unmodified. Waits between
// attempts follow min(MaxWait, BaseWait * 2^(attempt-1)).
func (p Policy) Do(ctx context.Context, op Operation) (*http.Response, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	baseWait := p.BaseWait
	if baseWait <= 0 {
		baseWait = DefaultBaseWait
	}
	maxWait := p.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	retryableStatus := func(code int) bool {
		if p.RetryableStatuses == nil {
			return code == http.StatusServiceUnavailable
		}
		return p.RetryableStatuses[code]
	}
	retryableError := p.RetryableError
	if retryableError == nil {
		retryableError = IsTemporaryError
	}

	var resp *http.Response
	var err error
	for attempt := 1; ; attempt++ {
		resp, err = op(ctx)

		switch {
		case err == nil && !retryableStatus(resp.StatusCode):
			return resp, nil
		case err != nil && !retryableError(err):
			return nil, err
		case ctx.Err() != nil:
			return resp, err
		}

		if attempt >= maxAttempts {
			// Out of attempts: surface the last outcome as-is.
			return resp, err
		}

		if err != nil {
			if p.ResetConnections != nil {
				p.ResetConnections()
			}
		} else {
			// The retried request owns a fresh response; release this one.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		wait := baseWait << (attempt - 1)
		if wait > maxWait {
			wait = maxWait
		}
		p.sleep(ctx, wait)
	}
}

func (p Policy) sleep(ctx context.Context, d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// IsTemporaryError classifies transport-level errors that are worth
// retrying: timeouts, connection resets and refusals, and truncated reads.
func IsTemporaryError(err error) bool {
	if err == nil {
		return false
	}
	// Context cancellation is a caller decision, not a transient fault.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	return false
}
