package settlement

import (
	"time"

	"github.com/okian/raceledger/internal/domain/dedupe"
	"github.com/okian/raceledger/internal/domain/model"
	"github.com/okian/raceledger/pkg/logger"
)

// Option configures a Controller.
type Option func(*Controller)

// WithInFlightGuard replaces the default in-flight finish guard.
func WithInFlightGuard(d dedupe.Deduper) Option {
	return func(c *Controller) {
		if d != nil {
			c.inflight = d
		}
	}
}

// WithPublisher sets where race notifications go.
func WithPublisher(p model.Publisher) Option {
	return func(c *Controller) {
		if p != nil {
			c.pub = p
		}
	}
}

// WithLogger sets the controller's logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}
