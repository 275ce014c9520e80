package capability

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailure_Error(t *testing.T) {
	f := &Failure{Kind: FailureRateLimited}
	assert.Equal(t, "rate_limit_exceeded: no message", f.Error())

	cause := errors.New("status code 429")
	f = &Failure{Kind: FailureOther, Message: "boom", Cause: cause}
	assert.Equal(t, "other: boom: status code 429", f.Error())
	assert.ErrorIs(t, f, cause)
}

func TestKindFromTag(t *testing.T) {
	assert.Equal(t, FailureInsufficientCredits, kindFromTag("insufficient_credits"))
	assert.Equal(t, FailureRateLimited, kindFromTag(" rate_limit_exceeded "))
	assert.Equal(t, FailureOther, kindFromTag("network"))
	assert.Equal(t, FailureOther, kindFromTag(""))
}

func TestIsTransportError(t *testing.T) {
	assert.False(t, isTransportError(nil))
	assert.False(t, isTransportError(errors.New("plain")))
	assert.True(t, isTransportError(context.DeadlineExceeded))
	assert.True(t, isTransportError(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
}
