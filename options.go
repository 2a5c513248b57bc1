package engine

import (
	"time"

	"pipelined.dev/engine/log"
)

// Defaults of engine options.
const (
	DefaultStopTimeout     = time.Second
	DefaultEventCapacity   = 1024
	DefaultStagingCapacity = 256
)

// Option configures an engine.
type Option func(*Engine)

// WithLogger sets logger for lifecycle messages.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithStopTimeout sets how long Stop waits for an in-flight callback.
func WithStopTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.stopTimeout = d
	}
}

// WithEventCapacity sets capacity of the event channel. Events pushed
// into a full channel are dropped and counted.
func WithEventCapacity(n int) Option {
	return func(e *Engine) {
		e.eventCapacity = n
	}
}

// WithStagingCapacity limits number of events delivered in a single
// block. Excess events are discarded and counted.
func WithStagingCapacity(n int) Option {
	return func(e *Engine) {
		e.stagingCapacity = n
	}
}
