// Package oto drives the engine with the pure Go oto player. It supports
// output only and interleaved layout.
package oto

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/ebitengine/oto/v3"

	"pipelined.dev/engine"
	"pipelined.dev/engine/signal"
)

// DefaultBufferSize is the player buffer duration.
const DefaultBufferSize = 40 * time.Millisecond

// oto allows a single context per process.
var (
	mu      sync.Mutex
	shared  *oto.Context
	options oto.NewContextOptions
)

// Driver opens oto players.
type Driver struct {
	BufferSize time.Duration
}

// Open implements engine.Driver. Only the default device is supported
// and the first opened configuration is kept for the process lifetime.
func (d Driver) Open(cfg engine.DeviceConfig, t *engine.Trampoline) (engine.Stream, engine.Negotiated, error) {
	if cfg.Device != "" {
		return nil, engine.Negotiated{}, fmt.Errorf("device selection is not supported")
	}
	buffer := d.BufferSize
	if buffer == 0 {
		buffer = DefaultBufferSize
	}
	c, err := sharedContext(oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   buffer,
	})
	if err != nil {
		return nil, engine.Negotiated{}, err
	}
	r := &reader{
		trampoline: t,
		channels:   cfg.Channels,
		block:      cfg.BlockSize,
	}
	s := &stream{player: c.NewPlayer(r)}
	s.player.SetBufferSize(signal.FramesOf(cfg.SampleRate, buffer) * cfg.Channels * 4)
	return s, engine.Negotiated{
		SampleRate:    cfg.SampleRate,
		BlockSize:     cfg.BlockSize,
		Channels:      cfg.Channels,
		Layout:        signal.Interleaved,
		DeviceLatency: buffer,
	}, nil
}

func sharedContext(op oto.NewContextOptions) (*oto.Context, error) {
	mu.Lock()
	defer mu.Unlock()
	if shared != nil {
		if op.SampleRate != options.SampleRate || op.ChannelCount != options.ChannelCount {
			return nil, fmt.Errorf("context is already opened with %d Hz %d channels", options.SampleRate, options.ChannelCount)
		}
		return shared, nil
	}
	c, ready, err := oto.NewContext(&op)
	if err != nil {
		return nil, err
	}
	<-ready
	shared = c
	options = op
	return c, nil
}

// reader renders the graph when the player pulls samples. Every read
// renders at most one block.
type reader struct {
	trampoline *engine.Trampoline
	channels   int
	block      int
}

func (r *reader) Read(p []byte) (int, error) {
	frames := min(len(p)/(4*r.channels), r.block)
	if frames == 0 {
		return 0, nil
	}
	n := frames * r.channels
	// oto platforms are little endian, float32 samples are written in
	// place.
	out := unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(p))), n)
	r.trampoline.ProcessInterleaved(nil, out, frames)
	return n * 4, nil
}

type stream struct {
	player *oto.Player
}

// Start implements engine.Stream.
func (s *stream) Start() error {
	s.player.Play()
	return nil
}

// Stop implements engine.Stream.
func (s *stream) Stop() error {
	s.player.Pause()
	return nil
}

// Close implements engine.Stream.
func (s *stream) Close() error {
	return s.player.Close()
}
