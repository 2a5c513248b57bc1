// Package host adapts externally loaded plugins to processing units.
//
// A plugin is activated for a sample rate and a maximum block size,
// processes planar float32 buffers and is deactivated when it's not
// needed anymore. Unit takes care of the rest: it owns planar scratch
// buffers, collects parameter changes for the block and turns plugin
// failures into silence.
package host

import (
	"fmt"

	"pipelined.dev/engine/event"
	"pipelined.dev/engine/transport"
)

// Status is returned by a plugin after processing a block.
type Status int

// Process statuses.
const (
	// StatusContinue means that output is valid.
	StatusContinue Status = iota
	// StatusTail means that output is valid and contains the tail of a
	// signal that already ended.
	StatusTail
	// StatusSilent means that plugin didn't write output and it must be
	// treated as silence.
	StatusSilent
	// StatusError means that processing failed and output is invalid.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusContinue:
		return "continue"
	case StatusTail:
		return "tail"
	case StatusSilent:
		return "silent"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParamChange is a parameter change delivered to a plugin. Offset is a
// sample offset inside the block.
type ParamChange struct {
	ID     uint32
	Value  float64
	Offset int32
}

// ProcessData is passed to a plugin once per block. Buffers hold exactly
// Frames samples and are valid only during the call.
type ProcessData struct {
	Frames    int
	Input     [][]float32
	Output    [][]float32
	Events    []event.Event
	Params    []ParamChange
	Transport *transport.Snapshot
}

// Plugin is an externally loaded processor.
type Plugin interface {
	// Activate prepares plugin for processing. It returns false if the
	// configuration is not supported.
	Activate(sampleRate float64, maxBlockSize int) bool
	// Process renders a block. It must not allocate or block.
	Process(*ProcessData) Status
	// Deactivate releases processing resources.
	Deactivate()
}

// Resetter is implemented by plugins that can clear their state without
// deactivation.
type Resetter interface {
	Reset()
}

// Latency is implemented by plugins that delay their output.
type Latency interface {
	LatencySamples() int
}

// Namer is implemented by plugins that have a name.
type Namer interface {
	Name() string
}
