package oto

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/engine"
	"pipelined.dev/engine/graph"
	"pipelined.dev/engine/log"
	"pipelined.dev/engine/mock"
	"pipelined.dev/engine/unit"
)

// captureDriver keeps the trampoline so the reader can be tested without
// an audio device.
type captureDriver struct {
	trampoline *engine.Trampoline
}

type nopStream struct{}

func (nopStream) Start() error { return nil }
func (nopStream) Stop() error  { return nil }
func (nopStream) Close() error { return nil }

func (d *captureDriver) Open(cfg engine.DeviceConfig, t *engine.Trampoline) (engine.Stream, engine.Negotiated, error) {
	d.trampoline = t
	return nopStream{}, engine.Negotiated{
		SampleRate: cfg.SampleRate,
		BlockSize:  cfg.BlockSize,
		Channels:   cfg.Channels,
	}, nil
}

func TestReader(t *testing.T) {
	const (
		block    = 64
		channels = 2
	)
	g := graph.New()
	_, err := g.AddNode(&mock.Source{Value: 0.5}, unit.Ports{Outputs: 1})
	require.NoError(t, err)
	d := &captureDriver{}
	e := engine.New(d, g, engine.WithLogger(log.Silent))
	require.NoError(t, e.Open(engine.DeviceConfig{SampleRate: 48000, BlockSize: block, Channels: channels}))

	r := &reader{trampoline: d.trampoline, channels: channels, block: block}
	p := make([]byte, 3*block*channels*4)

	// stopped engine renders silence.
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, block*channels*4, n)
	assert.Zero(t, binary.LittleEndian.Uint32(p))

	require.NoError(t, e.Start())
	n, err = r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, block*channels*4, n, "single block per read")
	for i := 0; i < n; i += 4 {
		assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(p[i:])))
	}
	assert.Zero(t, e.Diagnostics().Overruns)

	n, err = r.Read(p[:10*channels*4+3])
	require.NoError(t, err)
	assert.Equal(t, 10*channels*4, n, "whole frames only")
	assert.Equal(t, uint64(1), e.Diagnostics().Overruns)

	n, err = r.Read(p[:3])
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, e.Stop())
	require.NoError(t, e.Close())
}
