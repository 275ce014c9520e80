package capability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// FailureKind is the closed set of failure tags a capability can report
type FailureKind string

const (
	FailureInsufficientCredits FailureKind = "insufficient_credits"
	FailureRateLimited         FailureKind = "rate_limit_exceeded"
	FailureNetwork             FailureKind = "network"
	FailureOther               FailureKind = "other"
)

// Failure is a tagged failure decoded at the capability boundary
type Failure struct {
	Kind    FailureKind
	Message string
	// RetryAfter is set only when the provider sent a retry hint
	RetryAfter *time.Duration
	Cause      error
}

func (f *Failure) Error() string {
	msg := f.Message
	if msg == "" {
		msg = "no message"
	}
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, msg, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, msg)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// kindFromTag maps a wire discriminant onto the closed set
func kindFromTag(tag string) FailureKind {
	switch strings.TrimSpace(tag) {
	case string(FailureInsufficientCredits):
		return FailureInsufficientCredits
	case string(FailureRateLimited):
		return FailureRateLimited
	default:
		return FailureOther
	}
}

// isTransportError reports whether err happened before any response arrived
func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func millis(ms int64) *time.Duration {
	d := time.Duration(ms) * time.Millisecond
	return &d
}
