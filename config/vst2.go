//go:build vst2 && (darwin || windows)

package config

import (
	"fmt"

	"pipelined.dev/engine/unit"
	"pipelined.dev/engine/vst2"
)

func init() {
	nodeTypes["vst2"] = newPlugin
}

// newPlugin loads a VST2 plugin. It processes 2 channels unless the node
// sets channels.
func newPlugin(n Node) (unit.Unit, unit.Ports, error) {
	if n.Path == "" {
		return nil, unit.Ports{}, fmt.Errorf("plugin path is not set")
	}
	channels := n.Channels
	if channels == 0 {
		channels = 2
	}
	u, err := vst2.NewUnit(n.Path, channels)
	if err != nil {
		return nil, unit.Ports{}, err
	}
	return u, processor, nil
}
