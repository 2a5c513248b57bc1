package main

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"pipelined.dev/engine/log"
	"pipelined.dev/engine/portaudio"
	"pipelined.dev/engine/vst2"
)

type devicesCommand struct{}

func (cmd *devicesCommand) Name() string {
	return "devices"
}

func (cmd *devicesCommand) Help() string {
	return "Show the list of available audio devices"
}

func (cmd *devicesCommand) Register(*flag.FlagSet) {}

func (cmd *devicesCommand) Run(out io.Writer) error {
	devices, err := portaudio.Driver{}.Devices()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tHOST\tIN\tOUT\tRATE\tDEFAULT")
	for _, d := range devices {
		def := ""
		if d.Default {
			def = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.0f\t%s\n", d.Name, d.Host, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, def)
	}
	return w.Flush()
}

type pluginsCommand struct {
	scan stringList
}

func (cmd *pluginsCommand) Name() string {
	return "plugins"
}

func (cmd *pluginsCommand) Help() string {
	return "Show the list of available plugins"
}

func (cmd *pluginsCommand) Register(fs *flag.FlagSet) {
	fs.Var(&cmd.scan, "scan", "semicolon separated paths to scan for plugins")
}

func (cmd *pluginsCommand) Run(out io.Writer) error {
	catalog := vst2.Scan(log.GetLogger(), append(vst2.DefaultScanPaths(), cmd.scan...)...)
	fmt.Fprint(out, catalog)
	return nil
}
