// Package config loads engine configuration from TOML files.
//
//	[device]
//	sample_rate = 48000
//	block_size = 256
//	layout = "planar"
//	workers = 2
//
//	[engine]
//	stop_timeout = "500ms"
//
//	[[node]]
//	name = "osc"
//	type = "sine"
//	frequency = 440
//
//	[[node]]
//	name = "out"
//	type = "gain"
//	decibels = -6
//	inputs = ["osc"]
//
// Node type vst2 loads a plugin from path. It is available in builds with
// the vst2 tag on darwin and windows.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"pipelined.dev/engine"
	"pipelined.dev/engine/signal"
)

// Config is the configuration of an engine and its graph.
type Config struct {
	Device          engine.DeviceConfig
	StopTimeout     time.Duration
	EventCapacity   int
	StagingCapacity int
	Nodes           []Node
	// Input and Output name the graph input and output nodes. Output is
	// resolved by the graph if empty.
	Input  string
	Output string
}

// Default returns configuration with engine defaults and no nodes.
func Default() Config {
	return Config{
		Device: engine.DeviceConfig{
			SampleRate: engine.DefaultSampleRate,
			BlockSize:  engine.DefaultBlockSize,
			Channels:   engine.DefaultChannels,
		},
		StopTimeout:     engine.DefaultStopTimeout,
		EventCapacity:   engine.DefaultEventCapacity,
		StagingCapacity: engine.DefaultStagingCapacity,
	}
}

type fileConfig struct {
	Device deviceSection `toml:"device"`
	Engine engineSection `toml:"engine"`
	Nodes  []Node        `toml:"node"`
	Graph  graphSection  `toml:"graph"`
}

type deviceSection struct {
	Name          string `toml:"name"`
	SampleRate    int    `toml:"sample_rate"`
	BlockSize     int    `toml:"block_size"`
	Channels      int    `toml:"channels"`
	InputChannels int    `toml:"input_channels"`
	Layout        string `toml:"layout"`
	Workers       int    `toml:"workers"`
	Pin           bool   `toml:"pin"`
	Affinity      []int  `toml:"affinity"`
}

type engineSection struct {
	StopTimeout     string `toml:"stop_timeout"`
	EventCapacity   int    `toml:"event_capacity"`
	StagingCapacity int    `toml:"staging_capacity"`
}

type graphSection struct {
	Input  string `toml:"input"`
	Output string `toml:"output"`
}

// Load reads the file at path. Values that are not defined in the file
// keep their defaults.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return apply(raw, meta)
}

// Decode reads configuration from TOML text.
func Decode(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return apply(raw, meta)
}

func apply(raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	cfg := Default()
	d := &cfg.Device
	if meta.IsDefined("device", "name") {
		d.Device = strings.TrimSpace(raw.Device.Name)
	}
	if meta.IsDefined("device", "sample_rate") {
		d.SampleRate = raw.Device.SampleRate
	}
	if meta.IsDefined("device", "block_size") {
		d.BlockSize = raw.Device.BlockSize
	}
	if meta.IsDefined("device", "channels") {
		d.Channels = raw.Device.Channels
	}
	if meta.IsDefined("device", "input_channels") {
		d.InputChannels = raw.Device.InputChannels
	}
	if meta.IsDefined("device", "layout") {
		layout, err := parseLayout(raw.Device.Layout)
		if err != nil {
			return Config{}, err
		}
		d.Layout = layout
	}
	if meta.IsDefined("device", "workers") {
		d.Workers = raw.Device.Workers
	}
	if meta.IsDefined("device", "pin") {
		d.Pin = raw.Device.Pin
	}
	if meta.IsDefined("device", "affinity") {
		d.Affinity = raw.Device.Affinity
	}

	if meta.IsDefined("engine", "stop_timeout") {
		timeout, err := time.ParseDuration(strings.TrimSpace(raw.Engine.StopTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse stop_timeout: %w", err)
		}
		cfg.StopTimeout = timeout
	}
	if meta.IsDefined("engine", "event_capacity") {
		cfg.EventCapacity = raw.Engine.EventCapacity
	}
	if meta.IsDefined("engine", "staging_capacity") {
		cfg.StagingCapacity = raw.Engine.StagingCapacity
	}

	cfg.Nodes = raw.Nodes
	cfg.Input = strings.TrimSpace(raw.Graph.Input)
	cfg.Output = strings.TrimSpace(raw.Graph.Output)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseLayout(s string) (signal.Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "interleaved", "":
		return signal.Interleaved, nil
	case "planar":
		return signal.Planar, nil
	}
	return 0, fmt.Errorf("unknown layout %q", s)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	d := c.Device
	if d.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("invalid sample_rate: %d", d.SampleRate))
	}
	if d.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid block_size: %d", d.BlockSize))
	}
	if d.Channels <= 0 || d.InputChannels < 0 {
		errs = append(errs, fmt.Errorf("invalid channels: %d in %d out", d.InputChannels, d.Channels))
	}
	if d.Workers < 0 {
		errs = append(errs, fmt.Errorf("invalid workers: %d", d.Workers))
	}
	if c.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid stop_timeout: %v", c.StopTimeout))
	}
	if c.EventCapacity <= 0 || c.StagingCapacity <= 0 {
		errs = append(errs, fmt.Errorf("invalid event capacity: %d channel %d staging", c.EventCapacity, c.StagingCapacity))
	}

	names := make(map[string]bool, len(c.Nodes))
	for i, n := range c.Nodes {
		if n.Name == "" {
			errs = append(errs, fmt.Errorf("node %d has no name", i))
			continue
		}
		if names[n.Name] {
			errs = append(errs, fmt.Errorf("duplicate node %q", n.Name))
		}
		names[n.Name] = true
		if _, ok := nodeTypes[n.Type]; !ok {
			errs = append(errs, fmt.Errorf("node %q has unknown type %q", n.Name, n.Type))
		}
	}
	for _, n := range c.Nodes {
		for _, in := range n.Inputs {
			if !names[in] {
				errs = append(errs, fmt.Errorf("node %q input %q is not defined", n.Name, in))
			}
		}
	}
	for _, ref := range []string{c.Input, c.Output} {
		if ref != "" && !names[ref] {
			errs = append(errs, fmt.Errorf("graph node %q is not defined", ref))
		}
	}
	return errors.Join(errs...)
}

// Options returns engine options defined by the configuration.
func (c Config) Options() []engine.Option {
	return []engine.Option{
		engine.WithStopTimeout(c.StopTimeout),
		engine.WithEventCapacity(c.EventCapacity),
		engine.WithStagingCapacity(c.StagingCapacity),
	}
}
