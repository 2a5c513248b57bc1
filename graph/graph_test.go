package graph_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/engine/event"
	"pipelined.dev/engine/graph"
	"pipelined.dev/engine/mock"
	"pipelined.dev/engine/signal"
	"pipelined.dev/engine/transport"
	"pipelined.dev/engine/unit"
)

const (
	sampleRate = 48000
	blockSize  = 64
	channels   = 2
)

var cfg = unit.Config{
	SampleRate:   sampleRate,
	MaxBlockSize: blockSize,
	Channels:     channels,
	Layout:       signal.Planar,
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	source    = unit.Ports{Outputs: 1}
	processor = unit.Ports{Inputs: 1, Outputs: 1}
)

func addNode(t *testing.T, g *graph.Graph, u unit.Unit, ports unit.Ports) graph.NodeID {
	t.Helper()
	id, err := g.AddNode(u, ports)
	require.NoError(t, err)
	return id
}

func TestCycle(t *testing.T) {
	g := graph.New()
	a := addNode(t, g, &mock.Processor{}, processor)
	b := addNode(t, g, &mock.Processor{}, processor)
	c := addNode(t, g, &mock.Processor{}, processor)
	require.NoError(t, g.Connect(a, b))
	require.NoError(t, g.Connect(b, c))

	tests := []struct {
		src, dst graph.NodeID
		path     []graph.NodeID
	}{
		{src: c, dst: a, path: []graph.NodeID{a, b, c}},
		{src: b, dst: a, path: []graph.NodeID{a, b}},
		{src: a, dst: a, path: []graph.NodeID{a}},
	}
	for _, test := range tests {
		err := g.Connect(test.src, test.dst)
		var cycleErr *graph.CycleError
		require.True(t, errors.As(err, &cycleErr), "%d -> %d", test.src, test.dst)
		assert.Equal(t, test.path, cycleErr.Path)
		assert.NotEmpty(t, err.Error())
	}

	// rejected edges leave the graph acyclic.
	assert.NoError(t, g.Prepare(cfg))
	assert.NoError(t, g.Release())
}

func TestConnectErrors(t *testing.T) {
	g := graph.New()
	s := addNode(t, g, &mock.Source{}, source)
	p := addNode(t, g, &mock.Processor{}, processor)

	assert.ErrorIs(t, g.Connect(s, 42), graph.ErrUnknownNode)
	var cfgErr *unit.ConfigurationError
	assert.True(t, errors.As(g.Connect(p, s), &cfgErr), "source has no inputs")
	assert.True(t, errors.As(g.ConnectPorts(s, 1, p, 0), &cfgErr))
	assert.NoError(t, g.Connect(s, p))
	assert.True(t, errors.As(g.Connect(s, p), &cfgErr), "duplicate edge")

	_, err := g.AddNode(nil, source)
	assert.True(t, errors.As(err, &cfgErr))
}

func TestTopologicalOrder(t *testing.T) {
	tests := []struct {
		name     string
		nodes    int
		edges    [][2]graph.NodeID
		expected []graph.NodeID
	}{
		{
			name:     "sources first",
			nodes:    3,
			edges:    [][2]graph.NodeID{{0, 2}, {1, 2}},
			expected: []graph.NodeID{0, 1, 2},
		},
		{
			name:     "reversed chain",
			nodes:    3,
			edges:    [][2]graph.NodeID{{2, 1}, {1, 0}},
			expected: []graph.NodeID{2, 1, 0},
		},
		{
			name:     "ties by insertion",
			nodes:    5,
			edges:    [][2]graph.NodeID{{3, 0}, {1, 0}, {4, 1}, {2, 0}},
			expected: []graph.NodeID{2, 3, 4, 1, 0},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			g := graph.New()
			for i := 0; i < test.nodes; i++ {
				addNode(t, g, &mock.Processor{}, processor)
			}
			for _, e := range test.edges {
				require.NoError(t, g.Connect(e[0], e[1]))
			}
			require.NoError(t, g.Prepare(cfg))
			defer g.Release()
			plan, err := g.Plan()
			require.NoError(t, err)
			assert.Equal(t, test.expected, plan.Order)
		})
	}
}

func TestOutputResolution(t *testing.T) {
	g := graph.New()
	assert.NoError(t, g.Prepare(cfg), "empty graph")
	out := signal.Allocate(channels, blockSize, signal.Planar)
	out.Set(0, 0, 1)
	g.Process(signal.View{}, out, nil, nil)
	assert.Zero(t, out.At(0, 0), "empty graph writes silence")

	a := addNode(t, g, &mock.Source{}, source)
	b := addNode(t, g, &mock.Source{}, source)
	var cfgErr *unit.ConfigurationError
	assert.True(t, errors.As(g.Prepare(cfg), &cfgErr), "two sinks")
	require.NoError(t, g.SetOutput(b))
	require.NoError(t, g.Prepare(cfg))
	plan, err := g.Plan()
	require.NoError(t, err)
	assert.Equal(t, b, plan.Output)
	assert.NotEqual(t, a, plan.Output)
	assert.NoError(t, g.Release())
}

func TestPrepareErrors(t *testing.T) {
	errA, errB := errors.New("a failed"), errors.New("b failed")
	g := graph.New()
	addNode(t, g, &mock.Source{Hooks: mock.Hooks{ErrorOnPrepare: errA}}, source)
	addNode(t, g, &mock.Source{Hooks: mock.Hooks{ErrorOnPrepare: errB}}, source)
	addNode(t, g, &mock.Source{}, source)
	require.NoError(t, g.SetOutput(2))

	err := g.Prepare(cfg)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	_, err = g.Plan()
	assert.ErrorIs(t, err, graph.ErrNotPrepared)

	var cfgErr *unit.ConfigurationError
	assert.True(t, errors.As(g.Prepare(unit.Config{}), &cfgErr))
}

func TestSealed(t *testing.T) {
	g := graph.New()
	src := &mock.Source{}
	s := addNode(t, g, src, source)
	require.NoError(t, g.Prepare(cfg))
	assert.False(t, g.Dirty())

	g.Seal()
	_, err := g.AddNode(&mock.Source{}, source)
	assert.ErrorIs(t, err, graph.ErrSealed)
	assert.ErrorIs(t, g.SetOutput(s), graph.ErrSealed)
	assert.ErrorIs(t, g.Prepare(cfg), graph.ErrSealed)
	assert.ErrorIs(t, g.Reset(), graph.ErrSealed)
	assert.ErrorIs(t, g.Release(), graph.ErrSealed)
	assert.False(t, src.Resetted.Load())
	assert.False(t, src.Released.Load())

	g.Unseal()
	_, err = g.AddNode(&mock.Processor{}, processor)
	assert.NoError(t, err)
	assert.True(t, g.Dirty())
	assert.NoError(t, g.Release())
}

// Terminal node writes directly into the output and inputs connected to
// several edges receive the sum in connection order.
func TestRouting(t *testing.T) {
	g := graph.New()
	a := addNode(t, g, &mock.Source{Value: 1}, source)
	b := addNode(t, g, &mock.Source{Value: 10}, source)
	p := addNode(t, g, &mock.Processor{Gain: 2}, processor)
	fan := addNode(t, g, &mock.Processor{Gain: 1, Bias: 0.5}, processor)
	sink := &mock.Sink{}
	out := addNode(t, g, sink, unit.Ports{Inputs: 1, Outputs: 1})

	require.NoError(t, g.Connect(a, p))
	require.NoError(t, g.Connect(b, p))
	require.NoError(t, g.Connect(p, out))
	// fan-out of p into a second, unconnected processor.
	require.NoError(t, g.Connect(p, fan))
	require.NoError(t, g.SetOutput(out))
	require.NoError(t, g.Prepare(cfg))
	defer g.Release()

	buf := make([]float32, channels*blockSize)
	view := signal.InterleavedView(buf, channels, blockSize)
	g.Process(signal.View{}, view, nil, nil)
	for _, v := range buf {
		assert.Equal(t, float32(22), v)
	}
	blocks, samples := sink.Count()
	assert.Equal(t, int64(1), blocks)
	assert.Equal(t, int64(blockSize), samples)

	// shorter block.
	short := view.Slice(0, blockSize/2)
	g.Process(signal.View{}, short, nil, nil)
	assert.Panics(t, func() {
		g.Process(signal.View{}, signal.Allocate(channels, blockSize*2, signal.Planar), nil, nil)
	})
}

func TestInput(t *testing.T) {
	g := graph.New()
	p := addNode(t, g, &mock.Processor{Gain: 3}, processor)
	require.NoError(t, g.SetInput(p))
	require.NoError(t, g.Prepare(cfg))
	defer g.Release()

	in := signal.Allocate(channels, blockSize, signal.Interleaved)
	for i := 0; i < blockSize; i++ {
		in.Set(0, i, 1)
		in.Set(1, i, 2)
	}
	out := signal.Allocate(channels, blockSize, signal.Planar)
	g.Process(in, out, nil, nil)
	assert.Equal(t, float32(3), out.At(0, blockSize-1))
	assert.Equal(t, float32(6), out.At(1, 0))

	// no input memory means silence.
	g.Process(signal.View{}, out, nil, nil)
	assert.Zero(t, out.At(1, 0))
}

func TestLatency(t *testing.T) {
	g := graph.New()
	s := addNode(t, g, &mock.Source{}, source)
	a := addNode(t, g, &mock.Processor{Latency: 64}, processor)
	b := addNode(t, g, &mock.Processor{Latency: 10}, processor)
	c := addNode(t, g, &mock.Processor{Latency: 5}, processor)
	out := addNode(t, g, &mock.Sink{}, unit.Ports{Inputs: 1, Outputs: 1})
	require.NoError(t, g.Connect(s, a))
	require.NoError(t, g.Connect(s, b))
	require.NoError(t, g.Connect(b, c))
	require.NoError(t, g.Connect(a, out))
	require.NoError(t, g.Connect(c, out))
	require.NoError(t, g.Prepare(cfg))
	defer g.Release()
	assert.Equal(t, 64, g.Latency())
}

func TestParams(t *testing.T) {
	const capacity = 8
	tests := []struct {
		submitted int
		applied   int
	}{
		{submitted: 0, applied: 0},
		{submitted: 5, applied: 5},
		{submitted: capacity, applied: capacity},
		{submitted: 20, applied: capacity},
	}
	for _, test := range tests {
		g := graph.New(graph.WithParamCapacity(capacity))
		p := &mock.Processor{}
		id := addNode(t, g, p, processor)
		require.NoError(t, g.Prepare(cfg))

		for i := 0; i < test.submitted; i++ {
			g.SetParam(id, mock.ParamGain, float64(i), int32(i))
		}
		out := signal.Allocate(channels, blockSize, signal.Planar)
		g.Process(signal.View{}, out, nil, nil)

		params := p.Params()
		require.Len(t, params, test.applied)
		for i, param := range params {
			// applied in submission order, in the first block.
			assert.Equal(t, float64(i), param.Value)
			assert.Equal(t, int32(i), param.Offset)
			assert.Equal(t, int64(0), param.Block)
		}

		// exactly once: nothing is applied again in the next block.
		g.Process(signal.View{}, out, nil, nil)
		assert.Len(t, p.Params(), test.applied)

		stats, err := g.Stats(id)
		require.NoError(t, err)
		assert.Equal(t, uint64(test.applied), stats.ParamsApplied)
		assert.Equal(t, uint64(test.submitted-test.applied), stats.ParamsDropped)
		assert.Equal(t, uint64(2), stats.Processed)
		assert.NoError(t, g.Release())
	}
}

func TestEventsAndTransport(t *testing.T) {
	g := graph.New()
	p := &mock.Processor{}
	addNode(t, g, p, processor)
	require.NoError(t, g.Prepare(cfg))
	defer g.Release()

	snap := transport.New(sampleRate).Snapshot()
	events := mock.Events(3)
	g.Process(signal.View{}, signal.Allocate(channels, blockSize, signal.Planar), &snap, events)
	total, maxEvents := p.Events()
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(3), maxEvents)
	assert.Equal(t, event.NoteOn, events[0].Kind)
}

func TestReleaseAndReset(t *testing.T) {
	errRelease := errors.New("release")
	s := &mock.Source{}
	p := &mock.Processor{Hooks: mock.Hooks{ErrorOnRelease: errRelease}}
	g := graph.New()
	sid := addNode(t, g, s, source)
	pid := addNode(t, g, p, processor)
	require.NoError(t, g.Connect(sid, pid))
	require.NoError(t, g.Prepare(cfg))

	g.SetParam(pid, mock.ParamGain, 1, 0)
	require.NoError(t, g.Reset())
	assert.True(t, s.Resetted.Load())
	assert.True(t, p.Resetted.Load())
	g.Process(signal.View{}, signal.Allocate(channels, blockSize, signal.Planar), nil, nil)
	assert.Empty(t, p.Params(), "reset discards pending parameters")

	assert.ErrorIs(t, g.Release(), errRelease)
	assert.True(t, s.Released.Load())
	assert.True(t, p.Released.Load())
	assert.Len(t, g.AllStats(), 2)
}

// Diagnostics may be read from another goroutine while the graph is built.
func TestStatsWhileBuilding(t *testing.T) {
	g := graph.New()
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-done:
				return
			default:
				_ = g.AllStats()
				_ = g.Len()
			}
		}
	}()
	for i := 0; i < 2000; i++ {
		addNode(t, g, &mock.Source{}, source)
	}
	close(done)
	<-finished
	assert.Len(t, g.AllStats(), 2000)
	stats, err := g.Stats(1999)
	require.NoError(t, err)
	assert.Equal(t, graph.NodeID(1999), stats.ID)
}
