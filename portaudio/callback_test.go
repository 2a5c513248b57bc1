package portaudio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/engine/signal"
)

type recorder struct {
	layout signal.Layout
	frames int
}

func (r *recorder) ProcessPlanar(in, out [][]float32, frames int) {
	r.layout, r.frames = signal.Planar, frames
}

func (r *recorder) ProcessInterleaved(in, out []float32, frames int) {
	r.layout, r.frames = signal.Interleaved, frames
}

func TestCallback(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		samples  int
		frames   int
	}{
		{name: "stereo", channels: 2, samples: 512, frames: 256},
		{name: "mono device", channels: 1, samples: 256, frames: 256},
		{name: "no output", channels: 0, samples: 0, frames: 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := &recorder{layout: signal.Planar}
			fn, ok := newCallback(r, signal.Interleaved, test.channels).(func(in, out []float32))
			require.True(t, ok)
			fn(nil, make([]float32, test.samples))
			assert.Equal(t, signal.Interleaved, r.layout)
			assert.Equal(t, test.frames, r.frames)
		})
	}

	r := &recorder{}
	fn, ok := newCallback(r, signal.Planar, 2).(func(in, out [][]float32))
	require.True(t, ok)
	fn(nil, [][]float32{make([]float32, 128), make([]float32, 128)})
	assert.Equal(t, signal.Planar, r.layout)
	assert.Equal(t, 128, r.frames)
}
