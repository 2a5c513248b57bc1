package engine

import (
	"sync/atomic"
	"time"

	"pipelined.dev/engine/event"
	"pipelined.dev/engine/graph"
	"pipelined.dev/engine/ring"
	"pipelined.dev/engine/signal"
	"pipelined.dev/engine/transport"
)

// Trampoline is the entry point of the device callback. Drivers call one
// of its Process methods once per block from the device thread. All
// memory it uses is allocated when the engine is opened.
type Trampoline struct {
	graph   *graph.Graph
	clock   *transport.Clock
	events  *ring.Consumer[event.Event]
	staging []event.Event
	snap    transport.Snapshot

	block         int
	channels      int
	inputChannels int

	// gate is open while the engine is streaming.
	gate     atomic.Bool
	inflight atomic.Int32

	sequence  atomic.Uint64
	overruns  atomic.Uint64
	discarded atomic.Uint64
	last      atomic.Int64
	peak      atomic.Int64
}

// bind sizes the trampoline for the negotiated configuration.
func (t *Trampoline) bind(g *graph.Graph, clock *transport.Clock, events *ring.Consumer[event.Event], staging int, n Negotiated) {
	t.graph = g
	t.clock = clock
	t.events = events
	t.staging = make([]event.Event, staging)
	t.block = n.BlockSize
	t.channels = n.Channels
	t.inputChannels = n.InputChannels
}

// BlockSize returns the negotiated number of frames per callback.
func (t *Trampoline) BlockSize() int {
	return t.block
}

// Channels returns the negotiated number of input and output channels.
func (t *Trampoline) Channels() (in, out int) {
	return t.inputChannels, t.channels
}

// ProcessPlanar renders frames into non-interleaved device buffers. in
// may be empty for output-only streams. Buffers are used in place.
func (t *Trampoline) ProcessPlanar(in, out [][]float32, frames int) {
	t.inflight.Add(1)
	for _, c := range out {
		frames = min(frames, len(c))
	}
	if !t.gate.Load() || frames <= 0 {
		for _, c := range out {
			clear(c)
		}
		t.inflight.Add(-1)
		return
	}
	var inView signal.View
	if len(in) > 0 {
		for _, c := range in {
			frames = min(frames, len(c))
		}
		inView = signal.Channels(in, frames)
	}
	t.render(inView, signal.Channels(out, frames))
	t.inflight.Add(-1)
}

// ProcessInterleaved renders frames into interleaved device buffers. in
// may be empty for output-only streams. Buffers are used in place.
func (t *Trampoline) ProcessInterleaved(in, out []float32, frames int) {
	t.inflight.Add(1)
	frames = min(frames, len(out)/t.channels)
	if !t.gate.Load() || frames <= 0 {
		clear(out)
		t.inflight.Add(-1)
		return
	}
	var inView signal.View
	if len(in) > 0 && t.inputChannels > 0 {
		frames = min(frames, len(in)/t.inputChannels)
		inView = signal.InterleavedView(in[:frames*t.inputChannels], t.inputChannels, frames)
	}
	t.render(inView, signal.InterleavedView(out[:frames*t.channels], t.channels, frames))
	t.inflight.Add(-1)
}

// render runs the graph over the whole delivery. Deliveries larger than
// the block are rendered in block-sized chunks, events go to the first
// chunk.
func (t *Trampoline) render(in, out signal.View) {
	started := time.Now()
	frames := out.Frames()
	if frames != t.block {
		t.overruns.Add(1)
	}

	n, discarded := t.events.DrainInto(t.staging)
	if discarded > 0 {
		t.discarded.Add(uint64(discarded))
	}
	events := t.staging[:n]

	for off := 0; off < frames; off += t.block {
		end := min(off+t.block, frames)
		var chunk signal.View
		if !in.IsZero() {
			chunk = in.Slice(off, end)
		}
		t.clock.Read(&t.snap)
		t.graph.Process(chunk, out.Slice(off, end), &t.snap, events)
		t.clock.Advance(end - off)
		events = nil
	}
	t.sequence.Add(1)

	elapsed := int64(time.Since(started))
	t.last.Store(elapsed)
	if elapsed > t.peak.Load() {
		t.peak.Store(elapsed)
	}
}

// open makes the callback render the graph.
func (t *Trampoline) open() {
	t.gate.Store(true)
}

// shut makes the callback render silence.
func (t *Trampoline) shut() {
	t.gate.Store(false)
}

// idle reports if no callback is in flight.
func (t *Trampoline) idle() bool {
	return t.inflight.Load() == 0
}
