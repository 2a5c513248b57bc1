package engine_test

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pipelined.dev/engine"
	"pipelined.dev/engine/graph"
	"pipelined.dev/engine/log"
	"pipelined.dev/engine/mock"
	"pipelined.dev/engine/nodes"
	"pipelined.dev/engine/signal"
	"pipelined.dev/engine/unit"
	"pipelined.dev/engine/wav"
)

// Render a second of tone into a wav file without audio device.
func Example_render() {
	dir, err := os.MkdirTemp("", "engine")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "tone.wav")

	recorder, err := wav.NewRecorder(path, signal.BitDepth16, time.Second)
	if err != nil {
		panic(err)
	}
	g := graph.New()
	osc, _ := g.AddNode(nodes.NewSine(440), unit.Ports{Outputs: 1})
	rec, _ := g.AddNode(recorder, unit.Ports{Inputs: 1, Outputs: 1})
	if err := g.Connect(osc, rec); err != nil {
		panic(err)
	}

	d := &mock.Driver{}
	e := engine.New(d, g, engine.WithLogger(log.Silent))
	if err := e.Open(engine.DeviceConfig{SampleRate: 48000, BlockSize: 480}); err != nil {
		panic(err)
	}
	if err := e.Start(); err != nil {
		panic(err)
	}
	for i := 0; i < 100; i++ {
		d.Stream().Tick(480)
	}
	if err := e.Stop(); err != nil {
		panic(err)
	}
	// recorder writes the file when graph is released.
	if err := e.Close(); err != nil {
		panic(err)
	}

	clip, err := wav.Load(path)
	if err != nil {
		panic(err)
	}
	fmt.Println(clip.Frames(), clip.SampleRate, clip.Duration())
	// Output:
	// 48000 48000 1s
}

// Change gain while the engine is streaming.
func Example_param() {
	g := graph.New()
	osc, _ := g.AddNode(nodes.NewSine(1000), unit.Ports{Outputs: 1})
	gain, _ := g.AddNode(nodes.NewGain(0.5), unit.Ports{Inputs: 1, Outputs: 1})
	meter := nodes.NewMeter()
	out, _ := g.AddNode(meter, unit.Ports{Inputs: 1, Outputs: 1})
	_ = g.Connect(osc, gain)
	_ = g.Connect(gain, out)

	d := &mock.Driver{}
	e := engine.New(d, g, engine.WithLogger(log.Silent))
	if err := e.Open(engine.DeviceConfig{SampleRate: 48000, BlockSize: 480}); err != nil {
		panic(err)
	}
	if err := e.Start(); err != nil {
		panic(err)
	}
	d.Stream().Tick(480)
	fmt.Printf("%.2f\n", meter.Peak(0))

	g.SetParam(gain, nodes.GainLevel, 0, 0)
	d.Stream().Tick(480)
	fmt.Printf("%.2f\n", meter.Peak(0))

	_ = e.Stop()
	_ = e.Close()
	// Output:
	// 0.50
	// 0.00
}
