package graph

import (
	"sync/atomic"
	"time"

	"pipelined.dev/engine/ring"
	"pipelined.dev/engine/signal"
	"pipelined.dev/engine/unit"
)

type node struct {
	id           NodeID
	name         string
	unit         unit.Unit
	ports        unit.Ports
	parallelSafe bool
	producer     *ring.Producer[ParamChange]
	consumer     *ring.Consumer[ParamChange]

	// dispatch record resolved in Prepare.
	setter  unit.Parameterized
	latency int

	ins  []inputPort
	outs []outputPort
	ctx  unit.Context

	processed    atomic.Uint64
	applied      atomic.Uint64
	lastDuration atomic.Int64
	maxDuration  atomic.Int64
}

type inputPort struct {
	// callback port reads the input of Process.
	callback bool
	// sources are edge buffers in connection order.
	sources []signal.View
	// mix holds a sum of multiple sources.
	mix signal.View
}

type outputPort struct {
	// callback port writes into the output of Process.
	callback bool
	buf      signal.View
	// fanout are buffers of additional edges leaving this port.
	fanout []signal.View
}

// NodeStats is a snapshot of node diagnostics.
type NodeStats struct {
	ID            NodeID
	Name          string
	ParallelSafe  bool
	Processed     uint64
	ParamsApplied uint64
	ParamsDropped uint64
	LastDuration  time.Duration
	MaxDuration   time.Duration
}

// drainParams applies every parameter change published before the call.
func (n *node) drainParams() {
	pending := n.consumer.Len()
	for i := 0; i < pending; i++ {
		c, ok := n.consumer.Pop()
		if !ok {
			return
		}
		if n.setter != nil {
			n.setter.SetParam(c.Param, c.Value, c.Offset)
		}
		n.applied.Add(1)
	}
}

func (n *node) stats() NodeStats {
	return NodeStats{
		ID:            n.id,
		Name:          n.name,
		ParallelSafe:  n.parallelSafe,
		Processed:     n.processed.Load(),
		ParamsApplied: n.applied.Load(),
		ParamsDropped: n.producer.Dropped(),
		LastDuration:  time.Duration(n.lastDuration.Load()),
		MaxDuration:   time.Duration(n.maxDuration.Load()),
	}
}

func (n *node) measure(d time.Duration) {
	n.processed.Add(1)
	n.lastDuration.Store(int64(d))
	if int64(d) > n.maxDuration.Load() {
		n.maxDuration.Store(int64(d))
	}
}
