package diag

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// Category groups diagnostics for rate limiting.
type Category string

const (
	// CategoryRegistration is a descriptor that could not be watched.
	CategoryRegistration Category = "registration"
	// CategoryWaiterStart is a readiness waiter that could not be started.
	CategoryWaiterStart Category = "waiter-start"
	// CategoryPump is a failure inside the toolkit's event delivery.
	CategoryPump Category = "pump"
)

// DefaultRates bounds each category to a handful of lines.
var DefaultRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 30,
}

// Limiter gates diagnostic lines per category.
type Limiter struct {
	l *catrate.Limiter
}

// NewLimiter returns a Limiter enforcing rates, see catrate.NewLimiter.
// A nil or empty rates map disables limiting.
func NewLimiter(rates map[time.Duration]int) *Limiter {
	if len(rates) == 0 {
		return &Limiter{}
	}
	return &Limiter{l: catrate.NewLimiter(rates)}
}

// Allow reports whether a diagnostic of the given category (optionally
// qualified by key, e.g. the descriptor) may be logged now.
func (x *Limiter) Allow(category Category, key any) bool {
	if x == nil || x.l == nil {
		return true
	}
	_, ok := x.l.Allow(limitKey{key: key, category: category})
	return ok
}

type limitKey struct {
	key      any
	category Category
}
