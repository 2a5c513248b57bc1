// Package unit defines the contract every processing node implements.
//
// A unit is prepared off the real-time thread, where it may allocate, and
// then processed once per block on the real-time thread, where it must
// not allocate, lock or perform I/O.
package unit

import (
	"fmt"
	"reflect"

	"pipelined.dev/engine/event"
	"pipelined.dev/engine/signal"
	"pipelined.dev/engine/transport"
)

// Config is the negotiated processing configuration.
type Config struct {
	SampleRate   int
	MaxBlockSize int
	Channels     int
	Layout       signal.Layout
}

// Ports declares number of input and output ports of a node.
type Ports struct {
	Inputs  int
	Outputs int
}

// Context is passed to Process. It is owned by the graph and reused for
// every block, units must not retain it or any of its views.
type Context struct {
	// Frames is number of frames in this block, never greater than
	// MaxBlockSize.
	Frames    int
	Inputs    []signal.View
	Outputs   []signal.View
	Transport *transport.Snapshot
	// Events is the events staged for this block, shared read-only by all
	// nodes.
	Events []event.Event
}

// Unit is a processing node.
type Unit interface {
	// Prepare reserves state for the configuration. It may allocate.
	Prepare(Config) error
	// Process consumes inputs and writes all outputs.
	Process(*Context)
	// Reset clears transient state without reallocating.
	Reset()
	// ParallelSafe reports if Process has no side effects other than
	// writing its outputs. It is read once when the unit is added to a
	// graph.
	ParallelSafe() bool
}

// Parameterized is implemented by units that accept parameter changes.
// SetParam is called on the real-time thread right before Process.
type Parameterized interface {
	SetParam(id uint32, value float64, offset int32)
}

// Latency is implemented by units that delay their signal.
type Latency interface {
	LatencySamples() int
}

// Releaser is implemented by units that hold resources beyond memory.
type Releaser interface {
	Release() error
}

// ConfigurationError is returned when a unit or a graph cannot be prepared
// for a configuration.
type ConfigurationError struct {
	Unit   string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := e.Reason
	if e.Unit != "" {
		msg = e.Unit + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", msg, e.Err)
	}
	return "configuration error: " + msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Errorf returns a ConfigurationError for unit u.
func Errorf(u interface{}, format string, args ...interface{}) error {
	return &ConfigurationError{
		Unit:   Name(u),
		Reason: fmt.Sprintf(format, args...),
	}
}

// Validate checks that configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("invalid sample rate %d", c.SampleRate)}
	case c.MaxBlockSize <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("invalid block size %d", c.MaxBlockSize)}
	case c.Channels <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("invalid channel count %d", c.Channels)}
	}
	return nil
}

// Name returns type name of a unit.
func Name(u interface{}) string {
	if u == nil {
		return "<nil>"
	}
	rv := reflect.ValueOf(u)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return rv.Type().String()
		}
		rv = rv.Elem()
	}
	return rv.Type().String()
}
