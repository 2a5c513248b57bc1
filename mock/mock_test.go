package mock_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/engine"
	"pipelined.dev/engine/graph"
	"pipelined.dev/engine/log"
	"pipelined.dev/engine/mock"
	"pipelined.dev/engine/signal"
	"pipelined.dev/engine/unit"
)

func TestUnits(t *testing.T) {
	cfg := unit.Config{SampleRate: 44100, MaxBlockSize: 4, Channels: 2}
	src := &mock.Source{Value: 1, Step: 1}
	proc := &mock.Processor{Gain: 2, Bias: 0.5}
	sink := &mock.Sink{}
	for _, u := range []unit.Unit{src, proc, sink} {
		require.NoError(t, u.Prepare(cfg))
	}

	a := signal.Allocate(2, 4, signal.Planar)
	b := signal.Allocate(2, 4, signal.Planar)
	c := signal.Allocate(2, 4, signal.Planar)
	events := mock.Events(3)
	for block := 0; block < 2; block++ {
		src.Process(&unit.Context{Frames: 4, Outputs: []signal.View{a}, Events: events})
		proc.Process(&unit.Context{Frames: 4, Inputs: []signal.View{a}, Outputs: []signal.View{b}})
		sink.Process(&unit.Context{Frames: 4, Inputs: []signal.View{b}, Outputs: []signal.View{c}})
	}
	assert.Equal(t, []float32{10.5, 12.5, 14.5, 16.5}, sink.Last(4)[1])
	assert.Equal(t, float32(16.5), c.At(0, 3))

	blocks, samples := src.Count()
	assert.Equal(t, int64(2), blocks)
	assert.Equal(t, int64(8), samples)
	total, peak := src.Events()
	assert.Equal(t, int64(6), total)
	assert.Equal(t, int64(3), peak)

	proc.SetParam(mock.ParamGain, 3, 2)
	assert.Equal(t, float32(3), proc.Gain)
	assert.Equal(t, []mock.Param{{ID: mock.ParamGain, Value: 3, Offset: 2, Block: 2}}, proc.Params())

	src.Reset()
	assert.True(t, src.Resetted.Load())
	blocks, _ = src.Count()
	assert.Zero(t, blocks)
	assert.Equal(t, int32(1), src.Prepared.Load())
	assert.Equal(t, cfg, src.Config)
}

func TestHooks(t *testing.T) {
	errPrepare := errors.New("prepare")
	src := &mock.Source{Hooks: mock.Hooks{ErrorOnPrepare: errPrepare}}
	assert.ErrorIs(t, src.Prepare(unit.Config{}), errPrepare)

	errRelease := errors.New("release")
	sink := &mock.Sink{Hooks: mock.Hooks{ErrorOnRelease: errRelease}}
	assert.ErrorIs(t, sink.Release(), errRelease)
	assert.True(t, sink.Released.Load())
}

func TestDriver(t *testing.T) {
	g := graph.New()
	_, err := g.AddNode(&mock.Source{Value: 0.25}, unit.Ports{Outputs: 1})
	require.NoError(t, err)

	d := &mock.Driver{BlockSize: 32, Interleaved: true}
	e := engine.New(d, g, engine.WithLogger(log.Silent))
	require.NoError(t, e.Open(engine.DeviceConfig{}))
	n, ok := e.Negotiated()
	require.True(t, ok)
	assert.Equal(t, 32, n.BlockSize)

	s := d.Stream()
	assert.False(t, s.Tick(32), "not started")
	require.NoError(t, e.Start())
	assert.True(t, s.Started())
	assert.True(t, s.Tick(1000))
	out := s.Output()
	require.Len(t, out, engine.DefaultChannels)
	assert.Len(t, out[0], 4*32, "delivery is limited")
	assert.Equal(t, float32(0.25), out[1][100])

	require.NoError(t, e.Stop())
	require.NoError(t, e.Close())
	assert.True(t, s.IsClosed())
	assert.Equal(t, int32(1), d.Opened.Load())
	assert.Equal(t, int32(1), d.Closed.Load())
}

func TestClock(t *testing.T) {
	g := graph.New()
	_, err := g.AddNode(&mock.Source{}, unit.Ports{Outputs: 1})
	require.NoError(t, err)

	d := &mock.Driver{Interval: time.Millisecond}
	e := engine.New(d, g, engine.WithLogger(log.Silent))
	require.NoError(t, e.Open(engine.DeviceConfig{}))
	require.NoError(t, e.Start())
	assert.Eventually(t, func() bool {
		return d.Stream().Callbacks() >= 5
	}, time.Second, time.Millisecond)
	require.NoError(t, e.Stop())
	stopped := d.Stream().Callbacks()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, stopped, d.Stream().Callbacks())
	require.NoError(t, e.Close())
}
