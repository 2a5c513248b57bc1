package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range commands() {
		assert.NotEmpty(t, cmd.Help())
		names[cmd.Name()] = true
	}
	assert.Len(t, names, 4)

	var out bytes.Buffer
	c := config{args: []string{"rtengine"}, out: &out}
	assert.Equal(t, errorExitCode, c.run())
	assert.Contains(t, out.String(), "play")

	out.Reset()
	c.args = []string{"rtengine", "record"}
	assert.Equal(t, errorExitCode, c.run())
}

func TestPlan(t *testing.T) {
	var out bytes.Buffer
	c := config{args: []string{"rtengine", "plan", "-freq", "220"}, out: &out}
	require.Equal(t, successExitCode, c.run(), out.String())
	assert.Contains(t, out.String(), "2 nodes, latency 0 samples")
	assert.Contains(t, out.String(), "Order")
	assert.Contains(t, out.String(), "nodes.Sine")

	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[node]]
name = "osc"
type = "sine"

[[node]]
name = "meter"
type = "meter"
inputs = ["osc"]

[[node]]
name = "out"
type = "gain"
inputs = ["meter"]
`), 0o644))
	out.Reset()
	c.args = []string{"rtengine", "plan", "-config", path}
	require.Equal(t, successExitCode, c.run(), out.String())
	assert.Contains(t, out.String(), "3 nodes")

	out.Reset()
	c.args = []string{"rtengine", "plan", "-config", filepath.Join(t.TempDir(), "missing.toml")}
	assert.Equal(t, errorExitCode, c.run())
	assert.Contains(t, out.String(), "Command failed")
}

func TestPlayNull(t *testing.T) {
	var out bytes.Buffer
	c := config{args: []string{"rtengine", "play", "-driver", "null", "-duration", "50ms"}, out: &out}
	require.Equal(t, successExitCode, c.run(), out.String())
	assert.Contains(t, out.String(), "playing")
	assert.Contains(t, out.String(), "stopped")

	out.Reset()
	c.args = []string{"rtengine", "play", "-driver", "jack"}
	assert.Equal(t, errorExitCode, c.run())
	assert.Contains(t, out.String(), "unknown driver")
}

func TestStringList(t *testing.T) {
	var l stringList
	require.NoError(t, l.Set("/a; /b;;"))
	require.NoError(t, l.Set("/c"))
	assert.Equal(t, stringList{"/a", "/b", "/c"}, l)
	assert.Equal(t, "/a;/b;/c", l.String())
}
