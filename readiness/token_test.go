//go:build unix

package readiness

import (
	"context"
	"testing"
	"time"

	"github.com/joeycumines/go-uiselect/fdset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	token, err := NewToken()
	require.NoError(t, err)

	watch := fdset.NewWatch([]int{token.Fd()}, nil)
	out, err := Probe(watch)
	require.NoError(t, err)
	assert.True(t, out.Empty())

	require.NoError(t, token.Fire())
	require.NoError(t, token.Fire())
	assert.True(t, token.Fired())
	out, err = Probe(watch)
	require.NoError(t, err)
	assert.Equal(t, []int{token.Fd()}, out.Read)

	token.Reset()
	assert.False(t, token.Fired())
	out, err = Probe(watch)
	require.NoError(t, err)
	assert.True(t, out.Empty())

	require.NoError(t, token.Close())
	require.NoError(t, token.Close())
	assert.ErrorIs(t, token.Fire(), ErrTokenClosed)
}

func TestReceiveBatch(t *testing.T) {
	ch := make(chan int, 4)
	ch <- 1
	ch <- 2
	ch <- 3

	var got []int
	require.NoError(t, receiveBatch(context.Background(), ch, func(v int) { got = append(got, v) }))
	assert.Equal(t, []int{1, 2, 3}, got)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, receiveBatch(ctx, ch, func(int) {}), context.DeadlineExceeded)
}
