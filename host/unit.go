package host

import (
	"sync/atomic"

	"pipelined.dev/engine/signal"
	"pipelined.dev/engine/unit"
)

// DefaultParamCapacity is a default number of parameter changes a plugin
// receives in a single block.
const DefaultParamCapacity = 256

// Unit runs a plugin as a processing unit. Plugins are never considered
// parallel-safe unless WithParallel is used.
type Unit struct {
	plugin   Plugin
	parallel bool

	active   bool
	channels int
	data     ProcessData
	params   []ParamChange
	// scratch holds planar buffers for views that are not planar.
	inScratch  [][]float32
	outScratch [][]float32

	status  atomic.Int32
	errors  atomic.Uint64
	dropped atomic.Uint64
}

// Option configures a plugin unit.
type Option func(*Unit)

// WithParallel marks plugin as safe to run on worker threads.
func WithParallel() Option {
	return func(u *Unit) {
		u.parallel = true
	}
}

// WithParamCapacity sets number of parameter changes delivered in a
// single block. Excess changes are dropped and counted.
func WithParamCapacity(n int) Option {
	return func(u *Unit) {
		u.params = make([]ParamChange, 0, n)
	}
}

// NewUnit wraps the plugin.
func NewUnit(p Plugin, options ...Option) *Unit {
	u := &Unit{plugin: p}
	for _, option := range options {
		option(u)
	}
	if u.params == nil {
		u.params = make([]ParamChange, 0, DefaultParamCapacity)
	}
	return u
}

// Name returns the plugin name.
func (u *Unit) Name() string {
	if n, ok := u.plugin.(Namer); ok {
		return n.Name()
	}
	return unit.Name(u.plugin)
}

// Prepare implements unit.Unit. Active plugin is deactivated first.
func (u *Unit) Prepare(cfg unit.Config) error {
	u.deactivate()
	if !u.plugin.Activate(float64(cfg.SampleRate), cfg.MaxBlockSize) {
		return &unit.ConfigurationError{
			Unit:   u.Name(),
			Reason: "plugin rejected activation",
		}
	}
	u.active = true
	u.channels = cfg.Channels
	u.inScratch = allocate(cfg.Channels, cfg.MaxBlockSize)
	u.outScratch = allocate(cfg.Channels, cfg.MaxBlockSize)
	u.data = ProcessData{
		Input:  make([][]float32, cfg.Channels),
		Output: make([][]float32, cfg.Channels),
	}
	u.params = u.params[:0]
	return nil
}

func allocate(channels, frames int) [][]float32 {
	buf := make([][]float32, channels)
	for i := range buf {
		buf[i] = make([]float32, frames)
	}
	return buf
}

// Process implements unit.Unit. Planar views are passed to the plugin
// without copying.
func (u *Unit) Process(ctx *unit.Context) {
	var in signal.View
	if len(ctx.Inputs) > 0 {
		in = ctx.Inputs[0]
	}
	out := ctx.Outputs[0]
	frames := ctx.Frames

	u.data.Frames = frames
	u.data.Input = u.data.Input[:min(in.NumChannels(), u.channels)]
	for ch := range u.data.Input {
		if in.Stride() == 1 {
			u.data.Input[ch] = in.Channel(ch)
			continue
		}
		buf := u.inScratch[ch][:frames]
		for i := range buf {
			buf[i] = in.At(ch, i)
		}
		u.data.Input[ch] = buf
	}
	direct := out.Stride() == 1
	u.data.Output = u.data.Output[:min(out.NumChannels(), u.channels)]
	for ch := range u.data.Output {
		if direct {
			u.data.Output[ch] = out.Channel(ch)
		} else {
			u.data.Output[ch] = u.outScratch[ch][:frames]
		}
	}
	u.data.Events = ctx.Events
	u.data.Transport = ctx.Transport
	u.data.Params = u.params

	status := u.plugin.Process(&u.data)
	u.status.Store(int32(status))
	u.params = u.params[:0]
	u.data.Events = nil
	u.data.Transport = nil

	switch status {
	case StatusError:
		u.errors.Add(1)
		out.Clear()
		return
	case StatusSilent:
		out.Clear()
		return
	}
	if !direct {
		for ch, buf := range u.data.Output {
			for i, v := range buf {
				out.Set(ch, i, v)
			}
		}
	}
}

// SetParam implements unit.Parameterized. Changes are delivered with the
// next processed block.
func (u *Unit) SetParam(id uint32, value float64, offset int32) {
	if len(u.params) == cap(u.params) {
		u.dropped.Add(1)
		return
	}
	u.params = append(u.params, ParamChange{ID: id, Value: value, Offset: offset})
}

// Reset implements unit.Unit.
func (u *Unit) Reset() {
	u.params = u.params[:0]
	if r, ok := u.plugin.(Resetter); ok {
		r.Reset()
	}
}

// ParallelSafe implements unit.Unit.
func (u *Unit) ParallelSafe() bool {
	return u.parallel
}

// LatencySamples implements unit.Latency.
func (u *Unit) LatencySamples() int {
	if l, ok := u.plugin.(Latency); ok {
		return l.LatencySamples()
	}
	return 0
}

// Release implements unit.Releaser. It deactivates the plugin.
func (u *Unit) Release() error {
	u.deactivate()
	return nil
}

func (u *Unit) deactivate() {
	if u.active {
		u.plugin.Deactivate()
		u.active = false
	}
}

// Status returns status of the last processed block.
func (u *Unit) Status() Status {
	return Status(u.status.Load())
}

// Errors returns number of blocks that failed.
func (u *Unit) Errors() uint64 {
	return u.errors.Load()
}

// ParamsDropped returns number of parameter changes that did not fit
// into a block.
func (u *Unit) ParamsDropped() uint64 {
	return u.dropped.Load()
}
