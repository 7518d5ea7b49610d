package breaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mxprobe/internal/breaker"
)

var errDown = errors.New("down")

func TestSet_OpensAfterConsecutiveFailures(t *testing.T) {
	s := breaker.New(breaker.Config{Failures: 3, Cooldown: time.Hour})

	calls := 0
	fail := func() error { calls++; return errDown }

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, s.Do("mx[192.0.2.1]", fail), errDown)
	}
	assert.Equal(t, gobreaker.StateOpen, s.State("mx[192.0.2.1]"))

	err := s.Do("mx[192.0.2.1]", fail)
	assert.ErrorIs(t, err, breaker.ErrOpen)
	assert.Equal(t, 3, calls)

	// Other endpoints are unaffected.
	require.NoError(t, s.Do("mx[192.0.2.2]", func() error { return nil }))
	assert.Equal(t, gobreaker.StateClosed, s.State("mx[192.0.2.2]"))
}

func TestSet_SuccessResetsCount(t *testing.T) {
	s := breaker.New(breaker.Config{Failures: 2, Cooldown: time.Hour})

	_ = s.Do("k", func() error { return errDown })
	_ = s.Do("k", func() error { return nil })
	_ = s.Do("k", func() error { return errDown })
	assert.Equal(t, gobreaker.StateClosed, s.State("k"))
}

func TestSet_HalfOpenAfterCooldown(t *testing.T) {
	s := breaker.New(breaker.Config{Failures: 1, Cooldown: 50 * time.Millisecond})

	_ = s.Do("k", func() error { return errDown })
	assert.Equal(t, gobreaker.StateOpen, s.State("k"))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, s.State("k"))
	require.NoError(t, s.Do("k", func() error { return nil }))
	assert.Equal(t, gobreaker.StateClosed, s.State("k"))
}

func TestSet_IsFailureFilter(t *testing.T) {
	ignored := errors.New("ignored")
	s := breaker.New(breaker.Config{
		Failures:  1,
		IsFailure: func(err error) bool { return errors.Is(err, errDown) },
	})

	err := s.Do("k", func() error { return ignored })
	assert.ErrorIs(t, err, ignored)
	assert.Equal(t, gobreaker.StateClosed, s.State("k"))
}
