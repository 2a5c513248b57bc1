package engine

import (
	"fmt"
)

// state identifies one of the possible states engine can be in.
type state interface {
	transition(*Engine, action) (state, error)
	String() string
}

// states
type (
	closedState    struct{}
	openState      struct{}
	streamingState struct{}
)

// states variables
var (
	closed    closedState    // Closed means that no device is held.
	opened    openState      // Open means that device is negotiated and graph is prepared.
	streaming streamingState // Streaming means that device invokes the callback.
)

// action identifies the type of lifecycle call.
type action struct {
	kind   actionKind
	config DeviceConfig
}

type actionKind int

// types of actions.
const (
	openAction actionKind = iota
	startAction
	stopAction
	closeAction
)

func (k actionKind) String() string {
	switch k {
	case openAction:
		return "open"
	case startAction:
		return "start"
	case stopAction:
		return "stop"
	case closeAction:
		return "close"
	}
	return fmt.Sprintf("action(%d)", int(k))
}

func invalid(s state, a action) error {
	return fmt.Errorf("%w: cannot %v while %v", ErrInvalidState, a.kind, s)
}

func (closedState) String() string {
	return "closed"
}

func (s closedState) transition(e *Engine, a action) (state, error) {
	switch a.kind {
	case openAction:
		if err := e.open(a.config); err != nil {
			return s, err
		}
		return opened, nil
	}
	return s, invalid(s, a)
}

func (openState) String() string {
	return "open"
}

func (s openState) transition(e *Engine, a action) (state, error) {
	switch a.kind {
	case startAction:
		if err := e.start(); err != nil {
			return s, err
		}
		return streaming, nil
	case closeAction:
		return closed, e.close()
	}
	return s, invalid(s, a)
}

func (streamingState) String() string {
	return "streaming"
}

func (s streamingState) transition(e *Engine, a action) (state, error) {
	switch a.kind {
	case stopAction:
		// engine is not streaming even if stop failed.
		return opened, e.stop()
	}
	return s, invalid(s, a)
}
