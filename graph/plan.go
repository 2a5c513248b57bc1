package graph

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"pipelined.dev/engine/sched"
	"pipelined.dev/engine/signal"
	"pipelined.dev/engine/unit"
)

// Plan describes how the graph is executed.
type Plan struct {
	Order   []NodeID
	Spans   []sched.Span
	Edges   []Edge
	Output  NodeID
	Input   NodeID
	Latency int
}

// Edge describes a route between two ports.
type Edge struct {
	Src     NodeID
	SrcPort int
	Dst     NodeID
	DstPort int
}

// Prepare plans execution order, prepares every unit for the
// configuration and allocates all buffers used by Process. It may be
// called again after topology changes, but not while Process may run.
func (g *Graph) Prepare(cfg unit.Config) error {
	if g.sealed.Load() {
		return ErrSealed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	g.prepared = false
	if err := g.closePool(); err != nil {
		return err
	}

	output, err := g.resolveOutput()
	if err != nil {
		return err
	}
	order, err := g.sort()
	if err != nil {
		return err
	}
	if err := g.prepareUnits(cfg); err != nil {
		return err
	}

	g.cfg = cfg
	g.sink = output
	g.order = order
	g.positions = make([]int, len(order))
	position := make([]int, len(g.nodes))
	for pos, id := range order {
		g.positions[pos] = pos
		position[id] = pos
	}
	g.allocate(cfg)
	g.latency = g.longestLatency(order)

	g.spans = sched.Partition(
		len(order),
		func(pos int) bool { return g.nodes[order[pos]].parallelSafe },
		func(i, j int) bool {
			for _, ei := range g.succ[order[i]] {
				if position[g.edges[ei].dst] == j {
					return true
				}
			}
			return false
		},
	)
	if g.workers > 0 && hasParallel(g.spans) {
		pool, err := sched.NewPool(sched.Options{
			Workers:  g.workers,
			Affinity: g.affinity,
			Pin:      g.pin,
		}, g.step)
		if err != nil {
			return fmt.Errorf("error starting workers: %w", err)
		}
		g.pool = pool
	}

	g.prepared = true
	g.dirty = false
	g.logger.Debug(fmt.Sprintf("graph planned: %d nodes, %d edges, %d spans, %d workers, latency %d samples",
		len(g.nodes), len(g.edges), len(g.spans), g.workersStarted(), g.latency))
	return nil
}

// Reset clears transient state of every unit and discards pending
// parameter changes. It fails with ErrSealed while Process may run.
func (g *Graph) Reset() error {
	if g.sealed.Load() {
		return ErrSealed
	}
	for _, n := range g.nodes {
		n.unit.Reset()
		n.consumer.Reset()
	}
	return nil
}

// Release stops workers and releases resources held by units. It fails
// with ErrSealed while Process may run.
func (g *Graph) Release() error {
	if g.sealed.Load() {
		return ErrSealed
	}
	var errs nodeErrors
	if err := g.closePool(); err != nil {
		errs = append(errs, err)
	}
	for _, n := range g.nodes {
		if r, ok := n.unit.(unit.Releaser); ok {
			if err := r.Release(); err != nil {
				errs = append(errs, fmt.Errorf("node %d %s: %w", n.id, n.name, err))
			}
		}
	}
	g.prepared = false
	return errs.ret()
}

// Plan returns a copy of the execution plan.
func (g *Graph) Plan() (Plan, error) {
	if !g.prepared {
		return Plan{}, ErrNotPrepared
	}
	p := Plan{
		Order:   append([]NodeID(nil), g.order...),
		Spans:   append([]sched.Span(nil), g.spans...),
		Edges:   make([]Edge, 0, len(g.edges)),
		Output:  g.sink,
		Input:   g.input,
		Latency: g.latency,
	}
	for _, e := range g.edges {
		p.Edges = append(p.Edges, Edge{Src: e.src, SrcPort: e.srcPort, Dst: e.dst, DstPort: e.dstPort})
	}
	return p, nil
}

// Latency returns the sum of unit latencies along the slowest path.
func (g *Graph) Latency() int {
	return g.latency
}

// Stats returns diagnostics of the node.
func (g *Graph) Stats(id NodeID) (NodeStats, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, err := g.node(id)
	if err != nil {
		return NodeStats{}, err
	}
	return n.stats(), nil
}

// AllStats returns diagnostics of every node in insertion order.
func (g *Graph) AllStats() []NodeStats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	stats := make([]NodeStats, 0, len(g.nodes))
	for _, n := range g.nodes {
		stats = append(stats, n.stats())
	}
	return stats
}

func (g *Graph) closePool() error {
	if g.pool == nil {
		return nil
	}
	err := g.pool.Close()
	g.pool = nil
	return err
}

func (g *Graph) workersStarted() int {
	if g.pool == nil {
		return 0
	}
	return g.pool.Workers()
}

func hasParallel(spans []sched.Span) bool {
	for _, s := range spans {
		if s.Parallel {
			return true
		}
	}
	return false
}

func (g *Graph) resolveOutput() (NodeID, error) {
	if g.output != NoNode || len(g.nodes) == 0 {
		return g.output, nil
	}
	output := NoNode
	for _, n := range g.nodes {
		if len(g.succ[n.id]) > 0 || n.ports.Outputs == 0 {
			continue
		}
		if output != NoNode {
			return NoNode, &unit.ConfigurationError{
				Reason: fmt.Sprintf("ambiguous output: nodes %d and %d have no outgoing edges", output, n.id),
			}
		}
		output = n.id
	}
	if output == NoNode {
		return NoNode, &unit.ConfigurationError{Reason: "graph has no output node"}
	}
	return output, nil
}

// sort returns nodes in topological order. Nodes that become ready at the
// same time are ordered by insertion.
func (g *Graph) sort() ([]NodeID, error) {
	indegree := make([]int, len(g.nodes))
	for _, e := range g.edges {
		indegree[e.dst]++
	}
	queue := make([]NodeID, 0, len(g.nodes))
	for _, n := range g.nodes {
		if indegree[n.id] == 0 {
			queue = append(queue, n.id)
		}
	}
	order := make([]NodeID, 0, len(g.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, ei := range g.succ[id] {
			dst := g.edges[ei].dst
			indegree[dst]--
			if indegree[dst] == 0 {
				queue = append(queue, dst)
			}
		}
	}
	if len(order) != len(g.nodes) {
		var stuck []NodeID
		for _, n := range g.nodes {
			if indegree[n.id] > 0 {
				stuck = append(stuck, n.id)
			}
		}
		return nil, &CycleError{From: stuck[len(stuck)-1], To: stuck[0], Path: stuck}
	}
	return order, nil
}

func (g *Graph) prepareUnits(cfg unit.Config) error {
	errs := make([]error, len(g.nodes))
	eg, _ := errgroup.WithContext(context.Background())
	if g.prepareConcurrency > 0 {
		eg.SetLimit(g.prepareConcurrency)
	}
	for i, n := range g.nodes {
		eg.Go(func() error {
			if err := n.unit.Prepare(cfg); err != nil {
				errs[i] = fmt.Errorf("node %d %s: %w", n.id, n.name, err)
			}
			return nil
		})
	}
	_ = eg.Wait()

	var prepareErr nodeErrors
	for _, err := range errs {
		if err != nil {
			prepareErr = append(prepareErr, err)
		}
	}
	if err := prepareErr.ret(); err != nil {
		return fmt.Errorf("error preparing units: %w", err)
	}
	return nil
}

// allocate creates scratch buffers and processing contexts.
func (g *Graph) allocate(cfg unit.Config) {
	newBuffer := func() signal.View {
		return signal.Allocate(cfg.Channels, cfg.MaxBlockSize, signal.Planar)
	}
	g.silence = newBuffer()
	for i := range g.edges {
		g.edges[i].buf = newBuffer()
	}

	for _, n := range g.nodes {
		n.setter, _ = n.unit.(unit.Parameterized)
		n.latency = 0
		if l, ok := n.unit.(unit.Latency); ok {
			n.latency = l.LatencySamples()
		}

		n.ins = make([]inputPort, n.ports.Inputs)
		n.outs = make([]outputPort, n.ports.Outputs)
		n.ctx = unit.Context{
			Inputs:  make([]signal.View, n.ports.Inputs),
			Outputs: make([]signal.View, n.ports.Outputs),
		}
		if n.id == g.sink {
			n.outs[0].callback = true
		}
		if n.id == g.input {
			n.ins[0].callback = true
		}
	}

	for _, e := range g.edges {
		in := &g.nodes[e.dst].ins[e.dstPort]
		in.callback = false
		in.sources = append(in.sources, e.buf)

		out := &g.nodes[e.src].outs[e.srcPort]
		if out.buf.IsZero() && !out.callback {
			out.buf = e.buf
		} else {
			out.fanout = append(out.fanout, e.buf)
		}
	}

	for _, n := range g.nodes {
		for i := range n.ins {
			if len(n.ins[i].sources) > 1 {
				n.ins[i].mix = newBuffer()
			}
		}
		for i := range n.outs {
			if n.outs[i].buf.IsZero() && !n.outs[i].callback {
				// unconnected output is written and discarded.
				n.outs[i].buf = newBuffer()
			}
		}
	}
}

// longestLatency returns the maximum sum of latencies along any path.
func (g *Graph) longestLatency(order []NodeID) int {
	acc := make([]int, len(g.nodes))
	longest := 0
	for _, id := range order {
		n := g.nodes[id]
		acc[id] += n.latency
		longest = max(longest, acc[id])
		for _, ei := range g.succ[id] {
			dst := g.edges[ei].dst
			acc[dst] = max(acc[dst], acc[id])
		}
	}
	return longest
}
