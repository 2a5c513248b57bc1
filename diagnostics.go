package engine

import (
	"time"

	"pipelined.dev/engine/graph"
	"pipelined.dev/engine/signal"
)

// Diagnostics is a snapshot of real-time counters. Counters are reset
// when the engine is opened.
type Diagnostics struct {
	// Sequence is incremented after every callback.
	Sequence uint64
	// Overruns counts callbacks with unexpected number of frames.
	Overruns uint64
	// EventsDiscarded counts events that did not fit into a block.
	EventsDiscarded uint64
	// EventsDropped counts events rejected by the full event channel.
	EventsDropped uint64
	// LastCallback and PeakCallback are durations of the last and the
	// slowest callbacks.
	LastCallback time.Duration
	PeakCallback time.Duration
	Nodes        []graph.NodeStats
}

// Diagnostics returns current counters. It's safe to call while the
// engine is streaming.
func (e *Engine) Diagnostics() Diagnostics {
	e.mu.Lock()
	t := e.trampoline
	e.mu.Unlock()

	d := Diagnostics{
		EventsDropped: e.producer.Dropped(),
		Nodes:         e.graph.AllStats(),
	}
	if t == nil {
		return d
	}
	d.Sequence = t.sequence.Load()
	d.Overruns = t.overruns.Load()
	d.EventsDiscarded = t.discarded.Load()
	d.LastCallback = time.Duration(t.last.Load())
	d.PeakCallback = time.Duration(t.peak.Load())
	return d
}

// Sequence returns the callback sequence counter. A watchdog can poll it
// to detect a stalled device.
func (e *Engine) Sequence() uint64 {
	e.mu.Lock()
	t := e.trampoline
	e.mu.Unlock()
	if t == nil {
		return 0
	}
	return t.sequence.Load()
}

// Latency describes the latency of the opened engine.
type Latency struct {
	// Buffer is the duration of a single block.
	Buffer time.Duration
	// Graph is the latency reported by units along the slowest path.
	Graph time.Duration
	// GraphSamples is Graph in samples.
	GraphSamples int
	// RoundTrip is input buffer, output buffer and graph latency.
	RoundTrip time.Duration
	// Device is the output latency reported by the device.
	Device time.Duration
}

// Latency returns latency of the opened engine. It returns false if
// engine is closed.
func (e *Engine) Latency() (Latency, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return Latency{}, false
	}
	n := e.negotiated
	samples := e.graph.Latency()
	l := Latency{
		Buffer:       signal.DurationOf(n.SampleRate, int64(n.BlockSize)),
		Graph:        signal.DurationOf(n.SampleRate, int64(samples)),
		GraphSamples: samples,
		Device:       n.DeviceLatency,
	}
	l.RoundTrip = 2*l.Buffer + l.Graph
	return l, true
}
