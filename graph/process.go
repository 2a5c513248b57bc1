package graph

import (
	"fmt"
	"time"

	"pipelined.dev/engine/event"
	"pipelined.dev/engine/signal"
	"pipelined.dev/engine/transport"
)

// Process executes one block. Every node first applies its pending
// parameter changes and then processes. The number of frames is defined
// by out and must not exceed the prepared maximum block size. in may be a
// zero view, in this case the input node reads silence.
//
// Process is called on the real-time thread and does not allocate.
func (g *Graph) Process(in, out signal.View, snap *transport.Snapshot, events []event.Event) {
	if !g.prepared {
		panic(ErrNotPrepared)
	}
	frames := out.Frames()
	if frames > g.cfg.MaxBlockSize {
		panic(fmt.Sprintf("graph: block of %d frames exceeds maximum %d", frames, g.cfg.MaxBlockSize))
	}
	if len(g.order) == 0 {
		out.Clear()
		return
	}
	g.in = in
	g.out = out
	g.frames = frames
	g.snap = snap
	g.events = events

	for _, s := range g.spans {
		if s.Parallel && g.pool != nil {
			g.pool.Run(g.positions[s.Start:s.End])
			continue
		}
		for pos := s.Start; pos < s.End; pos++ {
			g.step(pos)
		}
	}

	g.in = signal.View{}
	g.out = signal.View{}
	g.snap = nil
	g.events = nil
}

// step executes the node at plan position pos.
func (g *Graph) step(pos int) {
	n := g.nodes[g.order[pos]]
	n.drainParams()
	g.bind(n)

	started := time.Now()
	n.unit.Process(&n.ctx)
	n.measure(time.Since(started))

	for i := range n.outs {
		o := &n.outs[i]
		for _, f := range o.fanout {
			f.Slice(0, g.frames).CopyFrom(n.ctx.Outputs[i])
		}
	}
}

// bind points the node context to this block's buffers.
func (g *Graph) bind(n *node) {
	frames := g.frames
	for i := range n.ins {
		p := &n.ins[i]
		switch {
		case p.callback && !g.in.IsZero():
			n.ctx.Inputs[i] = g.in.Slice(0, frames)
		case len(p.sources) == 0:
			n.ctx.Inputs[i] = g.silence.Slice(0, frames)
		case len(p.sources) == 1:
			n.ctx.Inputs[i] = p.sources[0].Slice(0, frames)
		default:
			mix := p.mix.Slice(0, frames)
			mix.CopyFrom(p.sources[0].Slice(0, frames))
			for _, src := range p.sources[1:] {
				mix.MixFrom(src.Slice(0, frames))
			}
			n.ctx.Inputs[i] = mix
		}
	}
	for i := range n.outs {
		if n.outs[i].callback {
			n.ctx.Outputs[i] = g.out
		} else {
			n.ctx.Outputs[i] = n.outs[i].buf.Slice(0, frames)
		}
	}
	n.ctx.Frames = frames
	n.ctx.Transport = g.snap
	n.ctx.Events = g.events
}
