package readiness

import (
	"fmt"
	"runtime"

	"github.com/joeycumines/go-uiselect/diag"
)

// Strategy selects a Waiter implementation.
type Strategy int

const (
	// StrategyDefault picks the best strategy for the platform.
	StrategyDefault Strategy = iota
	// StrategyEpoll uses one epoll instance per wait (linux).
	StrategyEpoll
	// StrategyPoll runs one poll(2) per descriptor on a bounded worker pool.
	StrategyPoll
	// StrategySelect uses a single blocking pselect(2) (linux).
	StrategySelect
)

// String returns a human-readable representation of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyDefault:
		return "default"
	case StrategyEpoll:
		return "epoll"
	case StrategyPoll:
		return "poll"
	case StrategySelect:
		return "select"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// DefaultWorkers bounds the PollWaiter pool: tens of descriptors, not
// thousands.
const DefaultWorkers = 64

// waiterOptions holds configuration options for Waiter creation.
type waiterOptions struct {
	logger  *diag.Logger
	limiter *diag.Limiter
	onError func(*RegistrationError)
	workers int
}

// Option configures a Waiter.
type Option interface {
	applyWaiter(*waiterOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyWaiterFunc func(*waiterOptions) error
}

func (o *optionImpl) applyWaiter(opts *waiterOptions) error {
	return o.applyWaiterFunc(opts)
}

// WithLogger sets the logger for registration diagnostics. Defaults to
// [diag.L].
func WithLogger(logger *diag.Logger) Option {
	return &optionImpl{func(opts *waiterOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithLimiter sets the diagnostic rate limiter. Defaults to one using
// [diag.DefaultRates].
func WithLimiter(limiter *diag.Limiter) Option {
	return &optionImpl{func(opts *waiterOptions) error {
		opts.limiter = limiter
		return nil
	}}
}

// WithWorkers bounds the number of concurrent per-descriptor waits used by
// [StrategyPoll].
func WithWorkers(n int) Option {
	return &optionImpl{func(opts *waiterOptions) error {
		if n <= 0 {
			return fmt.Errorf("readiness: invalid worker count %d", n)
		}
		opts.workers = n
		return nil
	}}
}

// WithRegistrationHook is called, synchronously, for every excluded
// descriptor, regardless of log rate limiting.
func WithRegistrationHook(fn func(*RegistrationError)) Option {
	return &optionImpl{func(opts *waiterOptions) error {
		opts.onError = fn
		return nil
	}}
}

// resolveOptions applies Option instances to waiterOptions.
func resolveOptions(opts []Option) (*waiterOptions, error) {
	cfg := &waiterOptions{
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyWaiter(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.limiter == nil {
		cfg.limiter = diag.NewLimiter(diag.DefaultRates)
	}
	return cfg, nil
}

func (cfg *waiterOptions) reporter() reporter {
	return reporter{logger: cfg.logger, limiter: cfg.limiter, onError: cfg.onError}
}

// New builds the Waiter for strategy.
func New(strategy Strategy, opts ...Option) (Waiter, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	if strategy == StrategyDefault {
		strategy = defaultStrategy()
	}
	switch strategy {
	case StrategyEpoll:
		return newEpollWaiter(cfg)
	case StrategyPoll:
		return &PollWaiter{workers: cfg.workers, report: cfg.reporter()}, nil
	case StrategySelect:
		return newSelectWaiter(cfg)
	default:
		return nil, fmt.Errorf("readiness: unknown strategy %v", strategy)
	}
}

func defaultStrategy() Strategy {
	if runtime.GOOS == "linux" {
		return StrategyEpoll
	}
	return StrategyPoll
}
