package resilience

import (
	"errors"
	"testing"
	"time"

	"character-studio/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
)

var errRemote = errors.New("remote failed")

func TestOpensAfterThreshold(t *testing.T) {
	var transitions []CircuitBreakerState
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "gateway",
		FailureThreshold: 2,
		SuccessThreshold: 1,
		RetryTimeout:     time.Hour,
		OnStateChange:    func(_ string, to CircuitBreakerState) { transitions = append(transitions, to) },
	}, logger.Discard())

	assert.ErrorIs(t, cb.Execute(func() error { return errRemote }), errRemote)
	assert.ErrorIs(t, cb.Execute(func() error { return errRemote }), errRemote)

	called := false
	err := cb.Execute(func() error { called = true; return nil })

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.Equal(t, []CircuitBreakerState{StateOpen}, transitions)
}

func TestHalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "gateway",
		FailureThreshold: 1,
		SuccessThreshold: 1,
		RetryTimeout:     time.Millisecond,
	}, logger.Discard())

	_ = cb.Execute(func() error { return errRemote })
	assert.Equal(t, StateOpen, cb.GetState())

	time.Sleep(5 * time.Millisecond)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestIgnoredErrorsDoNotTrip(t *testing.T) {
	errInput := errors.New("bad input")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "gateway",
		FailureThreshold: 1,
		SuccessThreshold: 1,
		RetryTimeout:     time.Hour,
		IsFailure:        func(err error) bool { return !errors.Is(err, errInput) },
	}, logger.Discard())

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errInput }), errInput)
	}
	assert.Equal(t, StateClosed, cb.GetState())
}
