package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"pipelined.dev/engine/graph"
	"pipelined.dev/engine/nodes"
	"pipelined.dev/engine/signal"
	"pipelined.dev/engine/unit"
	"pipelined.dev/engine/wav"
)

// Node describes a built-in unit. Fields that don't apply to the type
// are ignored. Inputs name the nodes summed into the first input port.
type Node struct {
	Name   string   `toml:"name"`
	Type   string   `toml:"type"`
	Inputs []string `toml:"inputs"`

	Frequency   float64  `toml:"frequency"`
	Amplitude   *float64 `toml:"amplitude"`
	FollowNotes bool     `toml:"follow_notes"`

	Level    *float64 `toml:"level"`
	Decibels *float64 `toml:"decibels"`

	Filter string  `toml:"filter"`
	Q      float64 `toml:"q"`

	Threshold float64 `toml:"threshold"`
	Ratio     float64 `toml:"ratio"`
	Attack    string  `toml:"attack"`
	Release   string  `toml:"release"`
	Makeup    float64 `toml:"makeup"`

	Path     string `toml:"path"`
	Channels int    `toml:"channels"`
	Loop     bool   `toml:"loop"`
	BitDepth int    `toml:"bit_depth"`
	Length   string `toml:"length"`
}

type constructor func(Node) (unit.Unit, unit.Ports, error)

var (
	source    = unit.Ports{Outputs: 1}
	processor = unit.Ports{Inputs: 1, Outputs: 1}
)

var nodeTypes = map[string]constructor{
	"sine":       newSine,
	"gain":       newGain,
	"biquad":     newBiquad,
	"compressor": newCompressor,
	"meter": func(Node) (unit.Unit, unit.Ports, error) {
		return nodes.NewMeter(), processor, nil
	},
	"sampler": newSampler,
	"input": func(Node) (unit.Unit, unit.Ports, error) {
		return nodes.Input{}, processor, nil
	},
	"recorder": newRecorder,
}

// Build creates the graph of configured nodes. Returned map holds node
// ids by name.
func (c Config) Build(options ...graph.Option) (*graph.Graph, map[string]graph.NodeID, error) {
	g := graph.New(options...)
	ids := make(map[string]graph.NodeID, len(c.Nodes))
	for _, n := range c.Nodes {
		newUnit, ok := nodeTypes[n.Type]
		if !ok {
			return nil, nil, fmt.Errorf("node %q has unknown type %q", n.Name, n.Type)
		}
		u, ports, err := newUnit(n)
		if err != nil {
			return nil, nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		id, err := g.AddNode(u, ports)
		if err != nil {
			return nil, nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		ids[n.Name] = id
	}
	for _, n := range c.Nodes {
		for _, in := range n.Inputs {
			src, ok := ids[in]
			if !ok {
				return nil, nil, fmt.Errorf("node %q input %q is not defined", n.Name, in)
			}
			if err := g.Connect(src, ids[n.Name]); err != nil {
				return nil, nil, fmt.Errorf("connect %q to %q: %w", in, n.Name, err)
			}
		}
	}
	if c.Input != "" {
		if err := g.SetInput(ids[c.Input]); err != nil {
			return nil, nil, err
		}
	}
	if c.Output != "" {
		if err := g.SetOutput(ids[c.Output]); err != nil {
			return nil, nil, err
		}
	}
	return g, ids, nil
}

func newSine(n Node) (unit.Unit, unit.Ports, error) {
	s := nodes.NewSine(n.Frequency)
	if n.Amplitude != nil {
		s.WithAmplitude(*n.Amplitude)
	}
	s.FollowNotes = n.FollowNotes
	return s, source, nil
}

func newGain(n Node) (unit.Unit, unit.Ports, error) {
	switch {
	case n.Level != nil && n.Decibels != nil:
		return nil, unit.Ports{}, fmt.Errorf("both level and decibels are set")
	case n.Decibels != nil:
		return nodes.NewGain(nodes.Decibels(*n.Decibels)), processor, nil
	case n.Level != nil:
		return nodes.NewGain(*n.Level), processor, nil
	}
	return nodes.NewGain(1), processor, nil
}

func newBiquad(n Node) (unit.Unit, unit.Ports, error) {
	var kind nodes.FilterType
	switch strings.ToLower(n.Filter) {
	case "lowpass", "":
		kind = nodes.Lowpass
	case "highpass":
		kind = nodes.Highpass
	case "bandpass":
		kind = nodes.Bandpass
	default:
		return nil, unit.Ports{}, fmt.Errorf("unknown filter %q", n.Filter)
	}
	q := n.Q
	if q == 0 {
		q = math.Sqrt2 / 2
	}
	return nodes.NewBiquad(kind, n.Frequency, q), processor, nil
}

func newCompressor(n Node) (unit.Unit, unit.Ports, error) {
	attack, err := duration(n.Attack, 10*time.Millisecond)
	if err != nil {
		return nil, unit.Ports{}, fmt.Errorf("parse attack: %w", err)
	}
	release, err := duration(n.Release, 100*time.Millisecond)
	if err != nil {
		return nil, unit.Ports{}, fmt.Errorf("parse release: %w", err)
	}
	ratio := n.Ratio
	if ratio == 0 {
		ratio = 4
	}
	return nodes.NewCompressor(nodes.CompressorSettings{
		Threshold: n.Threshold,
		Ratio:     ratio,
		Attack:    attack,
		Release:   release,
		Makeup:    n.Makeup,
	}), processor, nil
}

func newSampler(n Node) (unit.Unit, unit.Ports, error) {
	clip, err := wav.Load(n.Path)
	if err != nil {
		return nil, unit.Ports{}, err
	}
	p := nodes.NewSamplePlayer(clip)
	p.Loop = n.Loop
	return p, source, nil
}

func newRecorder(n Node) (unit.Unit, unit.Ports, error) {
	length, err := duration(n.Length, time.Minute)
	if err != nil {
		return nil, unit.Ports{}, fmt.Errorf("parse length: %w", err)
	}
	bitDepth := signal.BitDepth(n.BitDepth)
	if bitDepth == 0 {
		bitDepth = signal.BitDepth16
	}
	r, err := wav.NewRecorder(n.Path, bitDepth, length)
	if err != nil {
		return nil, unit.Ports{}, err
	}
	return r, processor, nil
}

func duration(s string, fallback time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}
