package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidState is returned if engine method cannot be executed at
	// this moment.
	ErrInvalidState = errors.New("invalid state")
	// ErrStopTimeout is returned when a callback is still in flight after
	// stop timeout. The engine is stopped anyway.
	ErrStopTimeout = errors.New("callback in flight after stop timeout")
)

// DeviceError is returned when the driver fails.
type DeviceError struct {
	Op     string
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	device := e.Device
	if device == "" {
		device = "default device"
	}
	return fmt.Sprintf("%s %s: %v", e.Op, device, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func deviceError(op, device string, err error) error {
	if err == nil {
		return nil
	}
	var de *DeviceError
	if errors.As(err, &de) {
		return err
	}
	return &DeviceError{Op: op, Device: device, Err: err}
}

// closeErrors wraps errors that occur while the engine releases
// multiple resources.
type closeErrors []error

func (e closeErrors) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ",")
}

func (e closeErrors) Unwrap() []error {
	return e
}

// ret returns untyped nil if error is list is empty.
func (e closeErrors) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
