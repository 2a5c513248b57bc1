package engine

import (
	"fmt"
	"time"

	"pipelined.dev/engine/signal"
)

// Default device configuration.
const (
	DefaultSampleRate = 48000
	DefaultBlockSize  = 256
	DefaultChannels   = 2
)

// DeviceConfig is requested from a driver when the engine is opened.
// Zero values are replaced with defaults.
type DeviceConfig struct {
	// Device is a driver-specific device name. Empty selects the default
	// device.
	Device        string
	SampleRate    int
	BlockSize     int
	Channels      int
	InputChannels int
	Layout        signal.Layout
	// Workers is a number of threads that run parallel parts of the
	// graph. Zero renders everything on the device thread.
	Workers int
	// Pin locks workers to cores. Affinity lists the cores, when empty
	// workers are spread over available cores.
	Pin      bool
	Affinity []int
}

func (c DeviceConfig) withDefaults() DeviceConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.BlockSize == 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}
	return c
}

func (c DeviceConfig) validate() error {
	switch {
	case c.SampleRate < 0:
		return fmt.Errorf("invalid sample rate: %d", c.SampleRate)
	case c.BlockSize < 0:
		return fmt.Errorf("invalid block size: %d", c.BlockSize)
	case c.Channels < 0 || c.InputChannels < 0:
		return fmt.Errorf("invalid channels: %d in %d out", c.InputChannels, c.Channels)
	case c.Workers < 0:
		return fmt.Errorf("invalid number of workers: %d", c.Workers)
	}
	return nil
}

// Negotiated is the configuration a driver actually opened.
type Negotiated struct {
	SampleRate    int
	BlockSize     int
	Channels      int
	InputChannels int
	Layout        signal.Layout
	// DeviceLatency is an output latency reported by the device, zero if
	// unknown.
	DeviceLatency time.Duration
}

func (n Negotiated) validate() error {
	if n.SampleRate <= 0 || n.BlockSize <= 0 || n.Channels <= 0 || n.InputChannels < 0 {
		return fmt.Errorf("driver negotiated invalid configuration: %+v", n)
	}
	return nil
}

// Driver opens audio devices.
type Driver interface {
	// Open negotiates the configuration with the device and binds the
	// trampoline to its callback. The callback must not be invoked
	// before Stream.Start.
	Open(DeviceConfig, *Trampoline) (Stream, Negotiated, error)
}

// Stream is an opened device.
type Stream interface {
	// Start makes the device invoke the callback.
	Start() error
	// Stop makes the device stop invoking the callback. A callback
	// already in flight may still complete after Stop returns.
	Stop() error
	// Close releases the device.
	Close() error
}

// DeviceInfo describes a device available to a driver.
type DeviceInfo struct {
	Name              string
	Host              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	Default           bool
}

// Lister is implemented by drivers that can enumerate devices.
type Lister interface {
	Devices() ([]DeviceInfo, error)
}
