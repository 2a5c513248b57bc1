// Package vst2 hosts VST2 plugins as processing units.
//
// Plugin discovery and time info conversion are pure Go. The plugin
// adapter needs cgo and is only built with the vst2 build tag on darwin
// and windows, the platforms github.com/dudk/vst2 loads libraries on.
//
// The library allocates on every processed block. Hosted VST2 plugins are
// not real-time safe: use them for offline work or accept occasional
// garbage collection on the device thread. They never run on workers.
package vst2

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"pipelined.dev/engine/log"
)

// Catalog is a list of plugin files grouped by directory.
type Catalog struct {
	Paths []string
	Libs  Libraries
}

// Libraries maps directory to plugin names found in it.
type Libraries map[string][]string

// DefaultScanPaths returns platform directories where plugins are
// installed. VST_PATH is appended if set.
func DefaultScanPaths() (paths []string) {
	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"~/Library/Audio/Plug-Ins/VST",
			"/Library/Audio/Plug-Ins/VST",
		}
	case "windows":
		paths = []string{
			"C:\\Program Files (x86)\\Steinberg\\VSTPlugins",
			"C:\\Program Files\\Steinberg\\VSTPlugins",
		}
	default:
		paths = []string{
			"/usr/lib/vst",
			"/usr/local/lib/vst",
		}
	}
	if env := os.Getenv("VST_PATH"); env != "" {
		paths = append(paths, filepath.SplitList(env)...)
	}
	return
}

// FileExtension returns extension of plugin files on this platform.
func FileExtension() string {
	switch runtime.GOOS {
	case "darwin":
		return ".vst"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// Scan walks the paths and collects plugin files. Paths that can't be
// read are logged and skipped.
func Scan(logger log.Logger, paths ...string) *Catalog {
	c := Catalog{
		Paths: uniquePaths(paths),
		Libs:  make(Libraries),
	}
	ext := FileExtension()
	for _, path := range c.Paths {
		err := filepath.Walk(expand(path), func(file string, info os.FileInfo, err error) error {
			if err != nil {
				logger.Debug(fmt.Sprintf("skip %s: %v", file, err))
				return nil
			}
			if strings.HasSuffix(info.Name(), ext) {
				dir := filepath.Dir(file)
				c.Libs[dir] = append(c.Libs[dir], strings.TrimSuffix(info.Name(), ext))
				// darwin bundles are directories.
				if info.IsDir() {
					return filepath.SkipDir
				}
			}
			return nil
		})
		if err != nil {
			logger.Info(fmt.Sprintf("scan %s: %v", path, err))
		}
	}
	return &c
}

// Find returns full path of the plugin with the name.
func (c *Catalog) Find(name string) (string, bool) {
	dirs := make([]string, 0, len(c.Libs))
	for dir := range c.Libs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	for _, dir := range dirs {
		for _, lib := range c.Libs[dir] {
			if lib == name {
				return filepath.Join(dir, lib+FileExtension()), true
			}
		}
	}
	return "", false
}

func (c *Catalog) String() string {
	var buf bytes.Buffer
	buf.WriteString("Scan paths:\n")
	for _, path := range c.Paths {
		buf.WriteString(fmt.Sprintf("\t%v\n", path))
	}
	buf.WriteString("Available plugins:\n")
	buf.WriteString(c.Libs.String())
	return buf.String()
}

func (libraries Libraries) String() string {
	var buf bytes.Buffer
	dirs := make([]string, 0, len(libraries))
	for dir := range libraries {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	for _, dir := range dirs {
		buf.WriteString(fmt.Sprintf("\t%v\n", dir))
		for _, lib := range libraries[dir] {
			buf.WriteString(fmt.Sprintf("\t\t%v\n", lib))
		}
	}
	if len(dirs) == 0 {
		buf.WriteString("\t[No plugins found]\n")
	}
	return buf.String()
}

func expand(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func uniquePaths(paths []string) []string {
	u := make([]string, 0, len(paths))
	m := make(map[string]bool)
	for _, val := range paths {
		if _, ok := m[val]; !ok {
			m[val] = true
			u = append(u, val)
		}
	}
	return u
}
