package readiness

import (
	"context"
)

// receiveBatch blocks until the first value arrives on ch (or ctx is done),
// then takes every value already buffered, without blocking again. Each
// value is passed to handler in receive order.
func receiveBatch[T any](ctx context.Context, ch <-chan T, handler func(value T)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case value := <-ch:
		handler(value)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case value := <-ch:
			handler(value)
		default:
			return nil
		}
	}
}
