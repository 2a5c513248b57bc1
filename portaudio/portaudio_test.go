//go:build portaudio

package portaudio_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/engine"
	"pipelined.dev/engine/graph"
	"pipelined.dev/engine/nodes"
	"pipelined.dev/engine/portaudio"
	"pipelined.dev/engine/signal"
	"pipelined.dev/engine/unit"
)

func TestDevices(t *testing.T) {
	devices, err := portaudio.Driver{}.Devices()
	require.NoError(t, err)
	assert.NotEmpty(t, devices)
}

func TestPlayback(t *testing.T) {
	for _, layout := range []signal.Layout{signal.Planar, signal.Interleaved} {
		t.Run(layout.String(), func(t *testing.T) {
			g := graph.New()
			sine, err := g.AddNode(nodes.NewSine(440), unit.Ports{Outputs: 1})
			require.NoError(t, err)
			gain, err := g.AddNode(nodes.NewGain(0.1), unit.Ports{Inputs: 1, Outputs: 1})
			require.NoError(t, err)
			require.NoError(t, g.Connect(sine, gain))

			e := engine.New(portaudio.Driver{}, g)
			require.NoError(t, e.Open(engine.DeviceConfig{Layout: layout}))
			require.NoError(t, e.Start())
			time.Sleep(200 * time.Millisecond)
			require.NoError(t, e.Stop())
			assert.Positive(t, e.Diagnostics().Sequence)
			require.NoError(t, e.Close())
		})
	}
}
