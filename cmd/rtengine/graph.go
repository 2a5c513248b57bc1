package main

import (
	"flag"

	conf "pipelined.dev/engine/config"
	"pipelined.dev/engine/graph"
	"pipelined.dev/engine/nodes"
	"pipelined.dev/engine/unit"
)

// graphFlags selects a configuration file or the demo tone.
type graphFlags struct {
	path string
	freq float64
	gain float64
}

func (f *graphFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.path, "config", "", "path to TOML configuration")
	fs.Float64Var(&f.freq, "freq", 440, "frequency of the demo tone")
	fs.Float64Var(&f.gain, "gain", 0.5, "level of the demo tone")
}

func (f *graphFlags) load() (conf.Config, error) {
	if f.path == "" {
		return conf.Default(), nil
	}
	return conf.Load(f.path)
}

// build creates graph from configuration. The demo sine into gain chain
// is used when configuration has no nodes.
func (f *graphFlags) build(cfg conf.Config, options ...graph.Option) (*graph.Graph, map[string]graph.NodeID, error) {
	if len(cfg.Nodes) > 0 {
		return cfg.Build(options...)
	}
	g := graph.New(options...)
	osc, err := g.AddNode(nodes.NewSine(f.freq), unit.Ports{Outputs: 1})
	if err != nil {
		return nil, nil, err
	}
	gain, err := g.AddNode(nodes.NewGain(f.gain), unit.Ports{Inputs: 1, Outputs: 1})
	if err != nil {
		return nil, nil, err
	}
	if err := g.Connect(osc, gain); err != nil {
		return nil, nil, err
	}
	return g, map[string]graph.NodeID{"osc": osc, "gain": gain}, nil
}
