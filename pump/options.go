package pump

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-uiselect/diag"
	"github.com/joeycumines/go-uiselect/uievent"
)

// DefaultSlice caps a single blocking pass. Hosts routinely pass huge
// timeouts, and the pump must come back up to re-check its stop condition.
const DefaultSlice = 25 * time.Millisecond

// pumpOptions holds configuration options for Pump creation.
type pumpOptions struct {
	buffer        *uievent.Buffer
	interrupter   *Interrupter
	handler       func(uievent.Event)
	onAboutToWait func()
	logger        *diag.Logger
	limiter       *diag.Limiter
	slice         time.Duration
}

// Option configures a Pump.
type Option interface {
	applyPump(*pumpOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyPumpFunc func(*pumpOptions) error
}

func (o *optionImpl) applyPump(opts *pumpOptions) error {
	return o.applyPumpFunc(opts)
}

// WithBuffer sets where interrupting events are appended. Defaults to
// [uievent.Global].
func WithBuffer(buffer *uievent.Buffer) Option {
	return &optionImpl{func(opts *pumpOptions) error {
		opts.buffer = buffer
		return nil
	}}
}

// WithInterrupter sets the legacy path wake, raised for every captured
// interrupting event. Nil disables it.
func WithInterrupter(interrupter *Interrupter) Option {
	return &optionImpl{func(opts *pumpOptions) error {
		opts.interrupter = interrupter
		return nil
	}}
}

// WithHandler receives every event that does not interrupt the wait, other
// than AboutToWait.
func WithHandler(fn func(uievent.Event)) Option {
	return &optionImpl{func(opts *pumpOptions) error {
		opts.handler = fn
		return nil
	}}
}

// WithOnAboutToWait runs when the toolkit is about to block, typically to
// redisplay.
func WithOnAboutToWait(fn func()) Option {
	return &optionImpl{func(opts *pumpOptions) error {
		opts.onAboutToWait = fn
		return nil
	}}
}

// WithLogger sets the logger for pump failures. Defaults to [diag.L].
func WithLogger(logger *diag.Logger) Option {
	return &optionImpl{func(opts *pumpOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithLimiter sets the diagnostic rate limiter.
func WithLimiter(limiter *diag.Limiter) Option {
	return &optionImpl{func(opts *pumpOptions) error {
		opts.limiter = limiter
		return nil
	}}
}

// WithSlice caps the duration of a single blocking pass.
func WithSlice(d time.Duration) Option {
	return &optionImpl{func(opts *pumpOptions) error {
		if d <= 0 {
			return fmt.Errorf("pump: invalid slice %v", d)
		}
		opts.slice = d
		return nil
	}}
}

// resolveOptions applies Option instances to pumpOptions.
func resolveOptions(opts []Option) (*pumpOptions, error) {
	cfg := &pumpOptions{
		slice: DefaultSlice,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyPump(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.buffer == nil {
		cfg.buffer = uievent.Global()
	}
	if cfg.limiter == nil {
		cfg.limiter = diag.NewLimiter(diag.DefaultRates)
	}
	return cfg, nil
}
