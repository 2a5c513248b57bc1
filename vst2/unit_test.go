//go:build vst2 && (darwin || windows)

package vst2_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/engine/vst2"
)

func TestNewUnit(t *testing.T) {
	_, err := vst2.NewUnit("fx"+vst2.FileExtension(), 0)
	assert.Error(t, err)

	_, err = vst2.NewUnit(filepath.Join(t.TempDir(), "missing"+vst2.FileExtension()), 2)
	assert.Error(t, err)
}
