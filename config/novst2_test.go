//go:build !(vst2 && (darwin || windows))

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/engine/config"
)

func TestPluginNodeUnavailable(t *testing.T) {
	_, err := config.Decode("[[node]]\nname = \"fx\"\ntype = \"vst2\"\npath = \"fx.so\"")
	assert.ErrorContains(t, err, `unknown type "vst2"`)
}
