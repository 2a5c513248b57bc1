// Package portaudio drives the engine from PortAudio devices.
package portaudio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"pipelined.dev/engine"
	"pipelined.dev/engine/signal"
)

// Driver opens PortAudio streams. Device names are matched exactly, empty
// name selects default devices of the default host.
type Driver struct {
	// LowLatency selects low latency device parameters instead of high
	// latency ones.
	LowLatency bool
}

type stream struct {
	*portaudio.Stream
}

// Open implements engine.Driver.
func (d Driver) Open(cfg engine.DeviceConfig, t *engine.Trampoline) (engine.Stream, engine.Negotiated, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, engine.Negotiated{}, err
	}
	params, err := d.parameters(cfg)
	if err != nil {
		portaudio.Terminate()
		return nil, engine.Negotiated{}, err
	}

	// frames are counted with negotiated channels, the trampoline is
	// bound with them.
	callback := newCallback(t, cfg.Layout, params.Output.Channels)
	s, err := portaudio.OpenStream(params, callback)
	if err != nil {
		portaudio.Terminate()
		return nil, engine.Negotiated{}, err
	}

	n := engine.Negotiated{
		SampleRate:    int(params.SampleRate),
		BlockSize:     params.FramesPerBuffer,
		Channels:      params.Output.Channels,
		InputChannels: params.Input.Channels,
		Layout:        cfg.Layout,
	}
	if info := s.Info(); info != nil {
		n.SampleRate = int(info.SampleRate)
		n.DeviceLatency = info.OutputLatency
	}
	return stream{Stream: s}, n, nil
}

// processor is the part of engine.Trampoline called by the stream.
type processor interface {
	ProcessPlanar(in, out [][]float32, frames int)
	ProcessInterleaved(in, out []float32, frames int)
}

func newCallback(p processor, layout signal.Layout, channels int) interface{} {
	if layout == signal.Planar {
		return func(in, out [][]float32) {
			frames := 0
			if len(out) > 0 {
				frames = len(out[0])
			}
			p.ProcessPlanar(in, out, frames)
		}
	}
	return func(in, out []float32) {
		frames := 0
		if channels > 0 {
			frames = len(out) / channels
		}
		p.ProcessInterleaved(in, out, frames)
	}
}

func (d Driver) parameters(cfg engine.DeviceConfig) (portaudio.StreamParameters, error) {
	out, err := outputDevice(cfg.Device)
	if err != nil {
		return portaudio.StreamParameters{}, err
	}
	var in *portaudio.DeviceInfo
	if cfg.InputChannels > 0 {
		if in, err = inputDevice(cfg.Device); err != nil {
			return portaudio.StreamParameters{}, err
		}
	}
	var params portaudio.StreamParameters
	if d.LowLatency {
		params = portaudio.LowLatencyParameters(in, out)
	} else {
		params = portaudio.HighLatencyParameters(in, out)
	}
	params.Output.Channels = min(cfg.Channels, out.MaxOutputChannels)
	if in != nil {
		params.Input.Channels = min(cfg.InputChannels, in.MaxInputChannels)
	}
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.BlockSize
	return params, nil
}

// Close terminates PortAudio after the stream is closed.
func (s stream) Close() error {
	if err := s.Stream.Close(); err != nil {
		portaudio.Terminate()
		return err
	}
	return portaudio.Terminate()
}

func outputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		return portaudio.DefaultOutputDevice()
	}
	return find(name, func(d *portaudio.DeviceInfo) bool { return d.MaxOutputChannels > 0 })
}

func inputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		return portaudio.DefaultInputDevice()
	}
	return find(name, func(d *portaudio.DeviceInfo) bool { return d.MaxInputChannels > 0 })
}

func find(name string, fn func(*portaudio.DeviceInfo) bool) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name == name && fn(d) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device %q not found", name)
}

// Devices implements engine.Lister.
func (Driver) Devices() ([]engine.DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	defer portaudio.Terminate()
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	out, _ := portaudio.DefaultOutputDevice()
	result := make([]engine.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		info := engine.DeviceInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           out != nil && d.Name == out.Name,
		}
		if d.HostApi != nil {
			info.Host = d.HostApi.Name
		}
		result = append(result, info)
	}
	return result, nil
}
