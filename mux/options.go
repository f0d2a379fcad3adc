package mux

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-uiselect/diag"
	"github.com/joeycumines/go-uiselect/pump"
	"github.com/joeycumines/go-uiselect/readiness"
	"github.com/joeycumines/go-uiselect/uievent"
)

// muxOptions holds configuration options for Multiplexer creation.
type muxOptions struct {
	toolkit       pump.Toolkit
	buffer        *uievent.Buffer
	handler       func(uievent.Event)
	onAboutToWait func()
	logger        *diag.Logger
	limiter       *diag.Limiter
	strategy      readiness.Strategy
	workers       int
	slice         time.Duration
	inline        bool
	signal        bool
	metrics       bool
}

// Option configures a Multiplexer.
type Option interface {
	applyMux(*muxOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyMuxFunc func(*muxOptions) error
}

func (o *optionImpl) applyMux(opts *muxOptions) error {
	return o.applyMuxFunc(opts)
}

// WithToolkit sets the window system loop to pump. Without one, every call
// uses the legacy pselect path.
func WithToolkit(toolkit pump.Toolkit) Option {
	return &optionImpl{func(opts *muxOptions) error {
		opts.toolkit = toolkit
		return nil
	}}
}

// WithStrategy selects the background readiness waiter.
func WithStrategy(strategy readiness.Strategy) Option {
	return &optionImpl{func(opts *muxOptions) error {
		opts.strategy = strategy
		return nil
	}}
}

// WithInline replaces the background waiter with readiness checks
// interleaved into the pump's wait phase, on the calling thread.
func WithInline(enabled bool) Option {
	return &optionImpl{func(opts *muxOptions) error {
		opts.inline = enabled
		return nil
	}}
}

// WithWorkers bounds the waiter's worker pool, see [readiness.WithWorkers].
func WithWorkers(n int) Option {
	return &optionImpl{func(opts *muxOptions) error {
		if n <= 0 {
			return fmt.Errorf("mux: invalid worker count %d", n)
		}
		opts.workers = n
		return nil
	}}
}

// WithBuffer sets the Event Buffer. Defaults to [uievent.Global].
func WithBuffer(buffer *uievent.Buffer) Option {
	return &optionImpl{func(opts *muxOptions) error {
		opts.buffer = buffer
		return nil
	}}
}

// WithHandler receives events that do not interrupt the wait.
func WithHandler(fn func(uievent.Event)) Option {
	return &optionImpl{func(opts *muxOptions) error {
		opts.handler = fn
		return nil
	}}
}

// WithOnAboutToWait runs whenever the toolkit is about to block.
func WithOnAboutToWait(fn func()) Option {
	return &optionImpl{func(opts *muxOptions) error {
		opts.onAboutToWait = fn
		return nil
	}}
}

// WithPumpSlice caps a single blocking toolkit pass, see [pump.DefaultSlice].
func WithPumpSlice(d time.Duration) Option {
	return &optionImpl{func(opts *muxOptions) error {
		if d <= 0 {
			return fmt.Errorf("mux: invalid pump slice %v", d)
		}
		opts.slice = d
		return nil
	}}
}

// WithSignal makes captured events also raise SIGIO, for hosts that
// handle it.
func WithSignal(enabled bool) Option {
	return &optionImpl{func(opts *muxOptions) error {
		opts.signal = enabled
		return nil
	}}
}

// WithLogger sets the diagnostic logger. Defaults to [diag.L].
func WithLogger(logger *diag.Logger) Option {
	return &optionImpl{func(opts *muxOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables call metrics, see [Multiplexer.Metrics].
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *muxOptions) error {
		opts.metrics = enabled
		return nil
	}}
}

// resolveOptions applies Option instances to muxOptions.
func resolveOptions(opts []Option) (*muxOptions, error) {
	cfg := &muxOptions{
		workers: readiness.DefaultWorkers,
		slice:   pump.DefaultSlice,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyMux(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.buffer == nil {
		cfg.buffer = uievent.Global()
	}
	cfg.limiter = diag.NewLimiter(diag.DefaultRates)
	return cfg, nil
}
