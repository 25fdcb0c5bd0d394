package hub

import (
	"fmt"
	"strings"
)

// The error taxonomy is a closed set of typed errors. Transient network
// failures never reach this package — the retry layer absorbs or re-raises
// them as-is. Everything here is final: callers must not retry.

// ValidationError reports a bad commit request, detected before any network
// call is made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "invalid commit request: " + e.Msg
}

// ProtocolError reports a malformed server response (missing part URLs,
// part-count mismatch). It indicates a server/client protocol mismatch and is
// never retried.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Msg
}

// RejectionError is a 4xx response from the remote, surfaced unmodified.
// Code and Message are decoded from the X-Error-Code and X-Error-Message
// headers when present.
type RejectionError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *RejectionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "request rejected (HTTP %d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, ", %s", e.Code)
	}
	b.WriteString(")")
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " (request id %s)", e.RequestID)
	}
	return b.String()
}

// IsConflict reports whether the rejection is a parent-commit or ref
// conflict (HTTP 409).
func (e *RejectionError) IsConflict() bool { return e.StatusCode == 409 }

// BatchFailure is one failed object of an LFS batch response.
type BatchFailure struct {
	OID     string
	Code    int
	Message string
}

// BatchError aggregates every per-object error of one LFS batch negotiation.
// When any object fails, the whole commit aborts with zero transfers.
type BatchError struct {
	Failures []BatchFailure
}

func (e *BatchError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = fmt.Sprintf("%s: [%d] %s", f.OID, f.Code, f.Message)
	}
	return fmt.Sprintf("LFS batch rejected %d object(s): %s",
		len(e.Failures), strings.Join(msgs, "; "))
}
