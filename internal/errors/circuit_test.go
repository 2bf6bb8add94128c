package errors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tripped(t *testing.T, failures int, reset time.Duration) (*CircuitBreaker, *time.Time) {
	t.Helper()
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker("ollama", WithMaxFailures(failures), WithResetTimeout(reset))
	cb.now = func() time.Time { return now }
	for i := 0; i < failures; i++ {
		_ = cb.Execute(func() error { return errors.New("down") })
	}
	require.Equal(t, StateOpen, cb.State())
	return cb, &now
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a breaker tripped by three failures
	cb, _ := tripped(t, 3, time.Second)

	// When: another call is attempted
	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})

	// Then: it is rejected without calling fn
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	cb, now := tripped(t, 2, 50*time.Millisecond)

	*now = now.Add(60 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	err := cb.Execute(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, now := tripped(t, 2, 50*time.Millisecond)

	*now = now.Add(60 * time.Millisecond)
	err := cb.Execute(func() error { return errors.New("still down") })

	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("ollama", WithMaxFailures(2))

	_ = cb.Execute(func() error { return errors.New("once") })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errors.New("again") })

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitExecute_ReturnsResult(t *testing.T) {
	cb := NewCircuitBreaker("ollama")

	v, err := CircuitExecute(cb, func() ([]float32, error) { return []float32{1, 2}, nil })

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)
	assert.Equal(t, "ollama", cb.Name())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
