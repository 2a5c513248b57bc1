package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"

	"pipelined.dev/engine/unit"
)

type planCommand struct {
	graphFlags
}

func (cmd *planCommand) Name() string {
	return "plan"
}

func (cmd *planCommand) Help() string {
	return "Prepare the graph and print its execution plan"
}

func (cmd *planCommand) Register(fs *flag.FlagSet) {
	cmd.graphFlags.register(fs)
}

func (cmd *planCommand) Run(out io.Writer) error {
	cfg, err := cmd.load()
	if err != nil {
		return err
	}
	g, _, err := cmd.build(cfg)
	if err != nil {
		return err
	}
	d := cfg.Device
	if err := g.Prepare(unit.Config{
		SampleRate:   d.SampleRate,
		MaxBlockSize: d.BlockSize,
		Channels:     d.Channels,
		Layout:       d.Layout,
	}); err != nil {
		return err
	}
	defer g.Release()
	plan, err := g.Plan()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d nodes, latency %d samples\n", g.Len(), plan.Latency)
	dumper := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
	dumper.Fdump(out, plan)
	for _, s := range g.AllStats() {
		fmt.Fprintf(out, "node %d: %s parallel=%v\n", s.ID, s.Name, s.ParallelSafe)
	}
	return nil
}
