//go:build !linux

package readiness

func newEpollWaiter(*waiterOptions) (Waiter, error) {
	return nil, ErrUnsupported
}

func newSelectWaiter(*waiterOptions) (Waiter, error) {
	return nil, ErrUnsupported
}
