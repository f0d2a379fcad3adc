//go:build linux

package readiness

import (
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/go-uiselect/fdset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSelectInterruptible_Ready(t *testing.T) {
	r, w := newPipe(t)
	_, err := w.Write([]byte{1})
	require.NoError(t, err)

	read := fdset.Of(int(r.Fd()))
	n, err := SelectInterruptible(int(r.Fd())+1, read, nil, time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, read.Has(int(r.Fd())))
}

func TestSelectInterruptible_Timeout(t *testing.T) {
	r, _ := newPipe(t)
	read := fdset.Of(int(r.Fd()))
	start := time.Now()
	n, err := SelectInterruptible(int(r.Fd())+1, read, nil, 20*time.Millisecond, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, read.Has(int(r.Fd())))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestSelectInterruptible_Interrupted(t *testing.T) {
	r, _ := newPipe(t)
	token, err := NewToken()
	require.NoError(t, err)
	defer token.Close()
	time.AfterFunc(10*time.Millisecond, func() { _ = token.Fire() })

	read := fdset.Of(int(r.Fd()))
	n, err := SelectInterruptible(int(r.Fd())+1, read, nil, -1, token)
	assert.Equal(t, -1, n)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.True(t, errors.Is(err, unix.EINTR))
	assert.Zero(t, read.Len(fdset.MaxFD))
	assert.False(t, token.Fired())
}
