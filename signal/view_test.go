package signal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/engine/signal"
)

func TestViewLayouts(t *testing.T) {
	// two channels, three frames: left is 1 2 3, right is 10 20 30.
	interleaved := []float32{1, 10, 2, 20, 3, 30}
	planar := []float32{1, 2, 3, 10, 20, 30}
	tests := []struct {
		name string
		view signal.View
	}{
		{
			name: "interleaved",
			view: signal.InterleavedView(interleaved, 2, 3),
		},
		{
			name: "planar",
			view: signal.PlanarView(planar, 2, 3),
		},
		{
			name: "channels",
			view: signal.Channels([][]float32{{1, 2, 3}, {10, 20, 30}}, 3),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v := test.view
			assert.Equal(t, 2, v.NumChannels())
			assert.Equal(t, 3, v.Frames())
			for i := 0; i < 3; i++ {
				assert.Equal(t, float32(i+1), v.At(0, i))
				assert.Equal(t, float32((i+1)*10), v.At(1, i))
			}

			s := v.Slice(1, 3)
			assert.Equal(t, 2, s.Frames())
			assert.Equal(t, float32(2), s.At(0, 0))
			assert.Equal(t, float32(30), s.At(1, 1))

			s.Set(1, 0, 99)
			assert.Equal(t, float32(99), v.At(1, 1))
		})
	}
}

func TestViewBulk(t *testing.T) {
	src := signal.InterleavedView([]float32{1, 2, 3, 4}, 2, 2)
	dst := signal.Allocate(2, 2, signal.Planar)

	dst.CopyFrom(src)
	assert.Equal(t, []float32{1, 3}, dst.Channel(0))
	assert.Equal(t, []float32{2, 4}, dst.Channel(1))

	dst.MixFrom(src)
	assert.Equal(t, []float32{2, 6}, dst.Channel(0))

	dst.Scale(0.5)
	assert.Equal(t, []float32{1, 3}, dst.Channel(0))

	src.Clear()
	for ch := 0; ch < 2; ch++ {
		for i := 0; i < 2; i++ {
			assert.Zero(t, src.At(ch, i))
		}
	}
}

func TestViewPreconditions(t *testing.T) {
	assert.Panics(t, func() {
		signal.InterleavedView(make([]float32, 3), 2, 2)
	})
	assert.Panics(t, func() {
		signal.Channels([][]float32{{1}, {1, 2}}, 2)
	})
	v := signal.Allocate(1, 4, signal.Planar)
	assert.Panics(t, func() {
		v.At(0, 4)
	})
	assert.Panics(t, func() {
		v.Slice(2, 5)
	})
	assert.Panics(t, func() {
		signal.InterleavedView(make([]float32, 4), 2, 2).Channel(0)
	})
	assert.Panics(t, func() {
		v.CopyFrom(signal.Allocate(1, 3, signal.Planar))
	})
}
