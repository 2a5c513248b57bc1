// Package graph owns processing nodes, their topology and the buffers
// between them, and executes them once per block.
//
// Building the graph, connecting nodes and preparing it happens on the
// control thread. Once prepared, Process runs on the real-time thread and
// does not allocate. Topology must not change while Process may be
// called: Seal makes mutating methods fail until Unseal.
package graph

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"pipelined.dev/engine/event"
	"pipelined.dev/engine/log"
	"pipelined.dev/engine/ring"
	"pipelined.dev/engine/sched"
	"pipelined.dev/engine/signal"
	"pipelined.dev/engine/transport"
	"pipelined.dev/engine/unit"
)

// DefaultParamCapacity is a default capacity of per-node parameter
// channels.
const DefaultParamCapacity = 1024

// NoNode is returned when node cannot be added.
const NoNode NodeID = -1

var (
	// ErrSealed is returned when topology is changed while the graph is
	// sealed for streaming.
	ErrSealed = errors.New("graph is sealed")
	// ErrUnknownNode is returned when node id doesn't belong to the graph.
	ErrUnknownNode = errors.New("unknown node")
	// ErrNotPrepared is returned when prepared state is required.
	ErrNotPrepared = errors.New("graph is not prepared")
)

// NodeID is a stable handle of a node inside its graph.
type NodeID int

// ParamChange is a parameter update submitted from the control thread.
// Offset is a sample offset inside the block where the change applies.
type ParamChange struct {
	Node   NodeID
	Param  uint32
	Value  float64
	Offset int32
}

// Graph is a directed acyclic graph of processing units.
type Graph struct {
	// mu guards the nodes slice header for readers of diagnostics. The
	// real-time path never takes it.
	mu    sync.RWMutex
	nodes []*node
	edges []edge
	// outgoing edge indices per node in insertion order.
	succ [][]int

	output NodeID
	input  NodeID

	paramCapacity      int
	workers            int
	affinity           []int
	pin                bool
	prepareConcurrency int
	logger             log.Logger

	sealed   atomic.Bool
	dirty    bool
	prepared bool
	cfg      unit.Config

	// execution plan.
	order     []NodeID
	sink      NodeID
	positions []int
	spans     []sched.Span
	pool      *sched.Pool
	latency   int

	silence signal.View

	// block state, valid during Process.
	in     signal.View
	out    signal.View
	frames int
	snap   *transport.Snapshot
	events []event.Event
}

type edge struct {
	src     NodeID
	srcPort int
	dst     NodeID
	dstPort int
	buf     signal.View
}

// Option configures a graph.
type Option func(*Graph)

// WithParamCapacity sets capacity of every node's parameter channel.
func WithParamCapacity(n int) Option {
	return func(g *Graph) {
		g.paramCapacity = n
	}
}

// WithWorkers sets number of worker threads used to run parallel spans.
// Zero disables parallel execution.
func WithWorkers(n int) Option {
	return func(g *Graph) {
		g.workers = n
	}
}

// WithAffinity pins worker threads to the cores. Without cores, workers
// are spread over available cores.
func WithAffinity(cores ...int) Option {
	return func(g *Graph) {
		g.pin = true
		g.affinity = append([]int(nil), cores...)
	}
}

// WithPrepareConcurrency limits number of units prepared concurrently.
func WithPrepareConcurrency(n int) Option {
	return func(g *Graph) {
		g.prepareConcurrency = n
	}
}

// WithLogger sets the logger for planning messages.
func WithLogger(l log.Logger) Option {
	return func(g *Graph) {
		g.logger = l
	}
}

// New returns an empty graph.
func New(options ...Option) *Graph {
	g := Graph{
		output:             NoNode,
		input:              NoNode,
		sink:               NoNode,
		paramCapacity:      DefaultParamCapacity,
		prepareConcurrency: 4,
		logger:             log.Silent,
	}
	for _, option := range options {
		option(&g)
	}
	return &g
}

// AddNode adds a unit to the graph. ParallelSafe is read once here.
func (g *Graph) AddNode(u unit.Unit, ports unit.Ports) (NodeID, error) {
	if g.sealed.Load() {
		return NoNode, ErrSealed
	}
	if u == nil {
		return NoNode, &unit.ConfigurationError{Reason: "nil unit"}
	}
	if ports.Inputs < 0 || ports.Outputs < 0 {
		return NoNode, unit.Errorf(u, "invalid ports %+v", ports)
	}
	id := NodeID(len(g.nodes))
	producer, consumer := ring.New[ParamChange](g.paramCapacity)
	n := &node{
		id:           id,
		name:         unit.Name(u),
		unit:         u,
		ports:        ports,
		parallelSafe: u.ParallelSafe(),
		producer:     producer,
		consumer:     consumer,
	}
	g.mu.Lock()
	g.nodes = append(g.nodes, n)
	g.mu.Unlock()
	g.succ = append(g.succ, nil)
	g.dirty = true
	return id, nil
}

// Connect routes the first output of src into the first input of dst.
func (g *Graph) Connect(src, dst NodeID) error {
	return g.ConnectPorts(src, 0, dst, 0)
}

// ConnectPorts routes output port srcPort of src into input port dstPort
// of dst. It fails with CycleError if the edge would make the topology
// cyclic. Multiple edges into one input are summed in connection order.
func (g *Graph) ConnectPorts(src NodeID, srcPort int, dst NodeID, dstPort int) error {
	if g.sealed.Load() {
		return ErrSealed
	}
	s, err := g.node(src)
	if err != nil {
		return err
	}
	d, err := g.node(dst)
	if err != nil {
		return err
	}
	if srcPort < 0 || srcPort >= s.ports.Outputs {
		return unit.Errorf(s.unit, "node %d has no output port %d", src, srcPort)
	}
	if dstPort < 0 || dstPort >= d.ports.Inputs {
		return unit.Errorf(d.unit, "node %d has no input port %d", dst, dstPort)
	}
	for _, e := range g.edges {
		if e.src == src && e.srcPort == srcPort && e.dst == dst && e.dstPort == dstPort {
			return &unit.ConfigurationError{Reason: fmt.Sprintf("duplicate edge %d:%d -> %d:%d", src, srcPort, dst, dstPort)}
		}
	}
	if path := g.path(dst, src); path != nil {
		return &CycleError{From: src, To: dst, Path: path}
	}
	g.edges = append(g.edges, edge{
		src:     src,
		srcPort: srcPort,
		dst:     dst,
		dstPort: dstPort,
	})
	g.succ[src] = append(g.succ[src], len(g.edges)-1)
	g.dirty = true
	return nil
}

// SetOutput designates the terminal node. Its first output port writes
// directly into the output of Process. If not set, the only node without
// outgoing edges is used.
func (g *Graph) SetOutput(id NodeID) error {
	if g.sealed.Load() {
		return ErrSealed
	}
	n, err := g.node(id)
	if err != nil {
		return err
	}
	if n.ports.Outputs < 1 {
		return unit.Errorf(n.unit, "output node %d has no output ports", id)
	}
	g.output = id
	g.dirty = true
	return nil
}

// SetInput designates the node whose first input port receives the input
// of Process when that port has no incoming edges.
func (g *Graph) SetInput(id NodeID) error {
	if g.sealed.Load() {
		return ErrSealed
	}
	n, err := g.node(id)
	if err != nil {
		return err
	}
	if n.ports.Inputs < 1 {
		return unit.Errorf(n.unit, "input node %d has no input ports", id)
	}
	g.input = id
	g.dirty = true
	return nil
}

// Params returns the producer end of node's parameter channel. It must be
// used by a single control thread.
func (g *Graph) Params(id NodeID) (*ring.Producer[ParamChange], error) {
	n, err := g.node(id)
	if err != nil {
		return nil, err
	}
	return n.producer, nil
}

// SetParam submits a parameter change for the node. It returns false if
// the change was dropped because the channel is full.
func (g *Graph) SetParam(id NodeID, param uint32, value float64, offset int32) bool {
	n, err := g.node(id)
	if err != nil {
		return false
	}
	return n.producer.Push(ParamChange{Node: id, Param: param, Value: value, Offset: offset})
}

// SetScheduling replaces worker settings given by options. It takes
// effect on the next Prepare. Negative workers are rejected.
func (g *Graph) SetScheduling(workers int, pin bool, cores []int) error {
	if g.sealed.Load() {
		return ErrSealed
	}
	if workers < 0 {
		return &unit.ConfigurationError{Reason: fmt.Sprintf("invalid number of workers: %d", workers)}
	}
	g.workers = workers
	g.pin = pin
	g.affinity = append([]int(nil), cores...)
	g.dirty = true
	return nil
}

// Scheduling returns current worker settings.
func (g *Graph) Scheduling() (workers int, pin bool, cores []int) {
	return g.workers, g.pin, append([]int(nil), g.affinity...)
}

// Seal forbids topology changes.
func (g *Graph) Seal() {
	g.sealed.Store(true)
}

// Unseal allows topology changes.
func (g *Graph) Unseal() {
	g.sealed.Store(false)
}

// Sealed reports if topology changes are forbidden.
func (g *Graph) Sealed() bool {
	return g.sealed.Load()
}

// Dirty reports if topology changed since last Prepare.
func (g *Graph) Dirty() bool {
	return g.dirty || !g.prepared
}

// Len returns number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func (g *Graph) node(id NodeID) (*node, error) {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return g.nodes[id], nil
}

// path returns nodes on a path from -> to or nil if to isn't reachable.
func (g *Graph) path(from, to NodeID) []NodeID {
	if from == to {
		return []NodeID{from}
	}
	prev := make([]NodeID, len(g.nodes))
	for i := range prev {
		prev[i] = NoNode
	}
	visited := make([]bool, len(g.nodes))
	visited[from] = true
	stack := []NodeID{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, ei := range g.succ[n] {
			next := g.edges[ei].dst
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = n
			if next == to {
				var path []NodeID
				for at := to; at != NoNode; at = prev[at] {
					path = append([]NodeID{at}, path...)
				}
				return path
			}
			stack = append(stack, next)
		}
	}
	return nil
}
