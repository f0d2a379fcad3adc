//go:build unix

package readiness

import (
	"bytes"
	"context"
	"errors"
	"os"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-uiselect/diag"
	"github.com/joeycumines/go-uiselect/fdset"
	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func strategies() []Strategy {
	if runtime.GOOS == "linux" {
		return []Strategy{StrategyEpoll, StrategyPoll, StrategySelect}
	}
	return []Strategy{StrategyPoll}
}

func newPipe(t *testing.T) (r, w *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})
	return r, w
}

func newWaiter(t *testing.T, strategy Strategy, opts ...Option) Waiter {
	t.Helper()
	opts = append([]Option{WithLogger(diag.Discard())}, opts...)
	w, err := New(strategy, opts...)
	require.NoError(t, err)
	return w
}

func TestWaiter_AlreadyReadable(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			r, w := newPipe(t)
			_, err := w.Write([]byte{1})
			require.NoError(t, err)

			out, err := newWaiter(t, strategy).Wait(context.Background(),
				fdset.NewWatch([]int{int(r.Fd())}, nil))
			require.NoError(t, err)
			assert.Equal(t, []int{int(r.Fd())}, out.Read)
			assert.Empty(t, out.Write)
			assert.Equal(t, 1, out.Len())
		})
	}
}

func TestWaiter_BecomesReadable(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			r, w := newPipe(t)
			time.AfterFunc(10*time.Millisecond, func() { _, _ = w.Write([]byte{1}) })

			start := time.Now()
			out, err := newWaiter(t, strategy).Wait(context.Background(),
				fdset.NewWatch([]int{int(r.Fd())}, nil))
			require.NoError(t, err)
			assert.Equal(t, []int{int(r.Fd())}, out.Read)
			assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
		})
	}
}

func TestWaiter_WritableAndReadableBatch(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			r1, w1 := newPipe(t)
			r2, w2 := newPipe(t)
			_, err := w1.Write([]byte{1})
			require.NoError(t, err)
			_, err = w2.Write([]byte{1})
			require.NoError(t, err)

			watch := fdset.NewWatch(
				[]int{int(r1.Fd()), int(r2.Fd())},
				[]int{int(w1.Fd())},
			)
			out, err := newWaiter(t, strategy).Wait(context.Background(), watch)
			require.NoError(t, err)
			// the poll strategy may observe the descriptors in separate
			// instants, but the follow-up probe collects the rest
			assert.ElementsMatch(t, []int{int(r1.Fd()), int(r2.Fd())}, out.Read)
			assert.Equal(t, []int{int(w1.Fd())}, out.Write)
			assert.Equal(t, 3, out.Len())
		})
	}
}

func TestWaiter_SameDescriptorBothDirections(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
			require.NoError(t, err)
			t.Cleanup(func() {
				_ = unix.Close(fds[0])
				_ = unix.Close(fds[1])
			})
			_, err = unix.Write(fds[1], []byte{1})
			require.NoError(t, err)

			out, err := newWaiter(t, strategy).Wait(context.Background(),
				fdset.NewWatch([]int{fds[0]}, []int{fds[0]}))
			require.NoError(t, err)
			assert.Equal(t, []int{fds[0]}, out.Read)
			assert.Equal(t, []int{fds[0]}, out.Write)
		})
	}
}

func TestWaiter_Cancel(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			r, _ := newPipe(t)
			ctx, cancel := context.WithCancel(context.Background())
			time.AfterFunc(10*time.Millisecond, cancel)

			done := make(chan struct{})
			var (
				out Outcome
				err error
			)
			go func() {
				defer close(done)
				out, err = newWaiter(t, strategy).Wait(ctx, fdset.NewWatch([]int{int(r.Fd())}, nil))
			}()

			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("waiter did not observe cancellation")
			}
			assert.ErrorIs(t, err, context.Canceled)
			assert.True(t, out.Empty())
		})
	}
}

func TestWaiter_AlreadyCancelled(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			r, w := newPipe(t)
			_, err := w.Write([]byte{1})
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			out, err := newWaiter(t, strategy).Wait(ctx, fdset.NewWatch([]int{int(r.Fd())}, nil))
			assert.ErrorIs(t, err, context.Canceled)
			assert.True(t, out.Empty())
		})
	}
}

func TestWaiter_BadDescriptorExcluded(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			r, w := newPipe(t)
			bad := unusedFd(t)
			time.AfterFunc(10*time.Millisecond, func() { _, _ = w.Write([]byte{1}) })

			var (
				mu       sync.Mutex
				excluded []int
			)
			var buf bytes.Buffer
			waiter := newWaiter(t, strategy,
				WithLogger(diag.NewLogger(&buf, logiface.LevelWarning)),
				WithRegistrationHook(func(err *RegistrationError) {
					mu.Lock()
					defer mu.Unlock()
					excluded = append(excluded, err.FD)
				}),
			)

			out, err := waiter.Wait(context.Background(), fdset.NewWatch([]int{bad, int(r.Fd())}, nil))
			require.NoError(t, err)
			assert.Equal(t, []int{int(r.Fd())}, out.Read)

			mu.Lock()
			defer mu.Unlock()
			assert.Contains(t, excluded, bad)
		})
	}
}

// unusedFd returns a descriptor number that is not open, and is high enough
// not to be reused by the waiter's own descriptors.
func unusedFd(t *testing.T) int {
	t.Helper()
	for fd := 1000; fd > 900; fd-- {
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
			return fd
		}
	}
	t.Skip("no unused descriptor")
	return -1
}

func TestNew_Options(t *testing.T) {
	_, err := New(StrategyPoll, WithWorkers(0))
	assert.Error(t, err)

	_, err = New(Strategy(99))
	assert.Error(t, err)

	w, err := New(StrategyDefault, nil)
	require.NoError(t, err)
	assert.NotNil(t, w)
}

func TestPollWaiter_PoolExhausted(t *testing.T) {
	r1, w1 := newPipe(t)
	r2, _ := newPipe(t)
	time.AfterFunc(10*time.Millisecond, func() { _, _ = w1.Write([]byte{1}) })

	var got []error
	waiter := newWaiter(t, StrategyPoll,
		WithWorkers(1),
		WithRegistrationHook(func(err *RegistrationError) { got = append(got, err) }),
	)
	lo, hi := int(r1.Fd()), int(r2.Fd())
	if hi < lo {
		t.Skip("unexpected descriptor ordering")
	}

	out, err := waiter.Wait(context.Background(), fdset.NewWatch([]int{lo, hi}, nil))
	require.NoError(t, err)
	assert.Equal(t, []int{lo}, out.Read)
	require.Len(t, got, 1)
	assert.True(t, errors.Is(got[0], ErrPoolExhausted))
}

func TestProbe(t *testing.T) {
	r, w := newPipe(t)
	watch := fdset.NewWatch([]int{int(r.Fd())}, []int{int(w.Fd())})

	out, err := Probe(watch)
	require.NoError(t, err)
	assert.Empty(t, out.Read)
	assert.Equal(t, []int{int(w.Fd())}, out.Write)

	_, err = w.Write([]byte{1})
	require.NoError(t, err)
	out, err = Probe(watch)
	require.NoError(t, err)
	assert.Equal(t, []int{int(r.Fd())}, out.Read)

	out, err = Probe(fdset.Watch{})
	require.NoError(t, err)
	assert.True(t, out.Empty())
}

func TestProbeTimeout(t *testing.T) {
	r, _ := newPipe(t)
	start := time.Now()
	out, err := ProbeTimeout(fdset.NewWatch([]int{int(r.Fd())}, nil), 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, out.Empty())
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestOutcome(t *testing.T) {
	a := Outcome{Read: []int{3}, Write: []int{5}}
	b := Outcome{Read: []int{1, 3}}
	m := a.Merge(b)
	assert.Equal(t, []int{1, 3}, m.Read)
	assert.Equal(t, []int{5}, m.Write)
	assert.Equal(t, []int{1, 3, 5}, m.Descriptors())
	assert.Equal(t, 3, m.Len())
	assert.True(t, Outcome{}.Empty())
}

func TestErrors(t *testing.T) {
	start := &StartError{Op: "eventfd", Err: unix.EMFILE}
	assert.ErrorIs(t, start, unix.EMFILE)
	assert.Contains(t, start.Error(), "eventfd")

	reg := &RegistrationError{FD: 9, Err: unix.EBADF}
	assert.ErrorIs(t, reg, unix.EBADF)
	assert.Contains(t, reg.Error(), "fd 9")
}
