package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/engine"
	"pipelined.dev/engine/config"
	"pipelined.dev/engine/signal"
	"pipelined.dev/engine/transport"
	"pipelined.dev/engine/unit"
)

const chain = `
[device]
name = "speakers"
sample_rate = 44100
block_size = 128
layout = "planar"
workers = 2
affinity = [0, 1]

[engine]
stop_timeout = "250ms"
staging_capacity = 16

[[node]]
name = "osc"
type = "sine"
frequency = 1000
amplitude = 0.5

[[node]]
name = "lp"
type = "biquad"
filter = "lowpass"
frequency = 5000
inputs = ["osc"]

[[node]]
name = "out"
type = "gain"
decibels = -6
inputs = ["lp"]

[graph]
output = "out"
`

func TestDefaults(t *testing.T) {
	cfg, err := config.Decode("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, engine.DefaultSampleRate, cfg.Device.SampleRate)
	assert.Equal(t, engine.DefaultBlockSize, cfg.Device.BlockSize)
	assert.Equal(t, engine.DefaultChannels, cfg.Device.Channels)
	assert.Equal(t, engine.DefaultStopTimeout, cfg.StopTimeout)
	assert.Len(t, cfg.Options(), 3)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(chain), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, engine.DeviceConfig{
		Device:     "speakers",
		SampleRate: 44100,
		BlockSize:  128,
		Channels:   engine.DefaultChannels,
		Layout:     signal.Planar,
		Workers:    2,
		Affinity:   []int{0, 1},
	}, cfg.Device)
	assert.Equal(t, 250*time.Millisecond, cfg.StopTimeout)
	assert.Equal(t, engine.DefaultEventCapacity, cfg.EventCapacity)
	assert.Equal(t, 16, cfg.StagingCapacity)
	require.Len(t, cfg.Nodes, 3)
	assert.Equal(t, []string{"lp"}, cfg.Nodes[2].Inputs)
	assert.Equal(t, "out", cfg.Output)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	cfg, err := config.Decode(chain)
	require.NoError(t, err)
	g, ids, err := cfg.Build()
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())

	require.NoError(t, g.Prepare(unit.Config{
		SampleRate:   cfg.Device.SampleRate,
		MaxBlockSize: cfg.Device.BlockSize,
		Channels:     cfg.Device.Channels,
	}))
	plan, err := g.Plan()
	require.NoError(t, err)
	assert.Equal(t, ids["out"], plan.Output)
	assert.Equal(t, []int{int(ids["osc"]), int(ids["lp"]), int(ids["out"])}, toInts(plan.Order))

	out := signal.Allocate(cfg.Device.Channels, cfg.Device.BlockSize, signal.Interleaved)
	snap := transport.New(cfg.Device.SampleRate).Snapshot()
	g.Process(signal.View{}, out, &snap, nil)
	var peak float32
	for i := 0; i < out.Frames(); i++ {
		peak = max(peak, out.At(0, i))
	}
	assert.InDelta(t, 0.25, peak, 0.03, "half amplitude at -6 dB")
	require.NoError(t, g.Release())
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{name: "unknown key", toml: "[device]\nrate = 1"},
		{name: "layout", toml: "[device]\nlayout = \"diagonal\""},
		{name: "sample rate", toml: "[device]\nsample_rate = -1"},
		{name: "workers", toml: "[device]\nworkers = -1"},
		{name: "timeout", toml: "[engine]\nstop_timeout = \"soon\""},
		{name: "capacity", toml: "[engine]\nevent_capacity = 0"},
		{name: "node type", toml: "[[node]]\nname = \"x\"\ntype = \"theremin\""},
		{name: "node name", toml: "[[node]]\ntype = \"sine\""},
		{name: "duplicate", toml: "[[node]]\nname = \"x\"\ntype = \"sine\"\n[[node]]\nname = \"x\"\ntype = \"sine\""},
		{name: "input", toml: "[[node]]\nname = \"x\"\ntype = \"gain\"\ninputs = [\"y\"]"},
		{name: "output", toml: "[graph]\noutput = \"y\""},
		{name: "syntax", toml: "[device"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := config.Decode(test.toml)
			assert.Error(t, err)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []string{
		"[[node]]\nname = \"g\"\ntype = \"gain\"\nlevel = 1\ndecibels = 0",
		"[[node]]\nname = \"f\"\ntype = \"biquad\"\nfilter = \"notch\"",
		"[[node]]\nname = \"c\"\ntype = \"compressor\"\nattack = \"fast\"",
		"[[node]]\nname = \"s\"\ntype = \"sampler\"\npath = \"missing.wav\"",
		"[[node]]\nname = \"r\"\ntype = \"recorder\"\npath = \"out.wav\"\nbit_depth = 12",
	}
	for _, data := range tests {
		cfg, err := config.Decode(data)
		require.NoError(t, err)
		_, _, err = cfg.Build()
		assert.Error(t, err, data)
	}
}

func toInts[T ~int](ids []T) []int {
	result := make([]int, len(ids))
	for i, id := range ids {
		result[i] = int(id)
	}
	return result
}
