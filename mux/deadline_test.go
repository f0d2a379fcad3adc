package mux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeadline(t *testing.T) {
	now := time.Now()

	d := newDeadline(now, 50*time.Millisecond)
	assert.Equal(t, now.Add(50*time.Millisecond), d.Time())
	assert.False(t, d.Infinite())
	assert.False(t, d.Expired())
	assert.LessOrEqual(t, d.Remaining(), 50*time.Millisecond)
	assert.Positive(t, d.Timeout())

	expired := newDeadline(now.Add(-time.Second), 0)
	assert.True(t, expired.Expired())
	assert.Zero(t, expired.Remaining())
	assert.Zero(t, expired.Timeout())

	infinite := newDeadline(now, -1)
	assert.True(t, infinite.Infinite())
	assert.False(t, infinite.Expired())
	assert.Equal(t, time.Duration(-1), infinite.Timeout())
	assert.True(t, infinite.Time().After(now.Add(365*24*time.Hour)))

	var zero Deadline
	assert.True(t, zero.Expired())
}

func TestState(t *testing.T) {
	var s fastState
	assert.Equal(t, StateIdle, s.Load())
	assert.True(t, s.TryTransition(StateIdle, StateRacing))
	assert.False(t, s.TryTransition(StateIdle, StateRacing))
	assert.Equal(t, StateRacing, s.Load())
	assert.True(t, s.TryTransition(StateRacing, StateIdle))
	assert.Equal(t, "Idle", StateIdle.String())
	assert.Equal(t, "Unknown", State(7).String())
}
