//go:build vst2 && (darwin || windows)

package vst2

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unsafe"

	"github.com/dudk/vst2"

	"pipelined.dev/engine/host"
	"pipelined.dev/engine/transport"
)

// Plugin adapts a loaded VST2 plugin to host.Plugin. Input is converted
// to float64 in buffers allocated on activation, but the library allocates
// Go and C buffers for every processed block. Plugin is therefore not
// real-time safe and must not run on worker threads.
type Plugin struct {
	path     string
	library  *vst2.Library
	plugin   *vst2.Plugin
	name     string
	channels int

	sampleRate int
	blockSize  int
	buf        [][]float64
	// snap is the transport of the block being processed, read by the
	// host callback.
	snap *transport.Snapshot
}

// Load opens the library at path and instantiates the plugin with the
// number of channels.
func Load(path string, channels int) (*Plugin, error) {
	p := &Plugin{
		path:     path,
		name:     strings.TrimSuffix(filepath.Base(path), FileExtension()),
		channels: channels,
	}
	if err := p.open(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Plugin) open() error {
	library, err := vst2.Open(p.path)
	if err != nil {
		return fmt.Errorf("error loading %s: %w", p.path, err)
	}
	plugin, err := library.Open()
	if err != nil {
		library.Close()
		return fmt.Errorf("error opening %s: %w", p.path, err)
	}
	p.library, p.plugin = library, plugin
	return nil
}

// Name implements host.Namer.
func (p *Plugin) Name() string {
	return p.name
}

// Activate implements host.Plugin. Closed plugin is loaded again.
func (p *Plugin) Activate(sampleRate float64, maxBlockSize int) bool {
	if p.plugin == nil {
		if err := p.open(); err != nil {
			return false
		}
	}
	p.sampleRate = int(sampleRate)
	p.blockSize = maxBlockSize
	p.buf = make([][]float64, p.channels)
	for i := range p.buf {
		p.buf[i] = make([]float64, maxBlockSize)
	}
	p.plugin.SetCallback(p.callback())
	p.plugin.SetBufferSize(maxBlockSize)
	p.plugin.SetSampleRate(p.sampleRate)
	p.plugin.SetSpeakerArrangement(p.channels)
	p.plugin.Resume()
	return true
}

// Process implements host.Plugin.
func (p *Plugin) Process(data *host.ProcessData) host.Status {
	frames := data.Frames
	channels := min(len(data.Output), p.channels)
	for ch := 0; ch < channels; ch++ {
		buf := p.buf[ch][:frames]
		if ch < len(data.Input) {
			for i, v := range data.Input[ch] {
				buf[i] = float64(v)
			}
		} else {
			clear(buf)
		}
		p.buf[ch] = buf
	}
	p.snap = data.Transport
	result := p.plugin.Process(p.buf[:channels])
	p.snap = nil
	for i := range p.buf {
		p.buf[i] = p.buf[i][:cap(p.buf[i])]
	}
	if len(result) < channels {
		return host.StatusError
	}
	for ch := 0; ch < channels; ch++ {
		out := data.Output[ch]
		for i := range out {
			out[i] = float32(result[ch][i])
		}
	}
	return host.StatusContinue
}

// Deactivate implements host.Plugin.
func (p *Plugin) Deactivate() {
	if p.plugin != nil {
		p.plugin.Suspend()
	}
}

// Close closes the plugin and unloads the library. The next activation
// loads it again.
func (p *Plugin) Close() {
	if p.plugin == nil {
		return
	}
	_ = p.plugin.Close()
	p.library.Close()
	p.plugin, p.library = nil, nil
}

// Unit runs a VST2 plugin in a graph. It is never parallel-safe and
// unloads the plugin when released.
type Unit struct {
	*host.Unit
	plugin *Plugin
}

// NewUnit loads the plugin at path and wraps it into a unit.
func NewUnit(path string, channels int, options ...host.Option) (*Unit, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("invalid number of channels: %d", channels)
	}
	p, err := Load(path, channels)
	if err != nil {
		return nil, err
	}
	return &Unit{Unit: host.NewUnit(p, options...), plugin: p}, nil
}

// ParallelSafe implements unit.Unit.
func (u *Unit) ParallelSafe() bool {
	return false
}

// Release implements unit.Releaser. The plugin is loaded again when the
// unit is prepared.
func (u *Unit) Release() error {
	err := u.Unit.Release()
	u.plugin.Close()
	return err
}

func (p *Plugin) callback() vst2.HostCallbackFunc {
	return func(plugin *vst2.Plugin, opcode vst2.MasterOpcode, index int64, value int64, ptr unsafe.Pointer, opt float64) int {
		switch opcode {
		case vst2.AudioMasterIdle:
			plugin.Dispatch(vst2.EffEditIdle, 0, 0, nil, 0)
		case vst2.AudioMasterGetSampleRate:
			return p.sampleRate
		case vst2.AudioMasterGetBlockSize:
			return p.blockSize
		case vst2.AudioMasterGetTime:
			if p.snap == nil {
				return 0
			}
			info := NewTimeInfo(p.snap)
			return int(plugin.SetTimeInfo(
				info.SampleRate,
				info.SamplePos,
				float32(info.Tempo),
				vst2.TimeSignature{NotesPerBar: info.NotesPerBar, NoteValue: info.Denominator},
				time.Now().UnixNano(),
				info.PPQPos,
				info.BarPos,
			))
		}
		return 0
	}
}
