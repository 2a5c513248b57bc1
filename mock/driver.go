package mock

import (
	"sync"
	"sync/atomic"
	"time"

	"pipelined.dev/engine"
)

// maxDelivery is a largest delivery of a mock stream in blocks.
const maxDelivery = 4

// Driver mocks an audio device driver. Streams are driven either by Tick
// or, if Interval is set, by a goroutine clock.
type Driver struct {
	// SampleRate and BlockSize override requested values when set.
	SampleRate int
	BlockSize  int
	// Interleaved makes the stream use the interleaved callback.
	Interleaved bool
	// Interval is a period of the goroutine clock. Zero disables it.
	Interval time.Duration

	ErrorOnOpen  error
	ErrorOnStart error
	ErrorOnStop  error
	ErrorOnClose error

	Opened atomic.Int32
	Closed atomic.Int32

	mu     sync.Mutex
	stream *Stream
}

// Open implements engine.Driver.
func (d *Driver) Open(cfg engine.DeviceConfig, t *engine.Trampoline) (engine.Stream, engine.Negotiated, error) {
	if d.ErrorOnOpen != nil {
		return nil, engine.Negotiated{}, d.ErrorOnOpen
	}
	n := engine.Negotiated{
		SampleRate:    cfg.SampleRate,
		BlockSize:     cfg.BlockSize,
		Channels:      cfg.Channels,
		InputChannels: cfg.InputChannels,
		Layout:        cfg.Layout,
	}
	if d.SampleRate > 0 {
		n.SampleRate = d.SampleRate
	}
	if d.BlockSize > 0 {
		n.BlockSize = d.BlockSize
	}
	s := newStream(d, t, n)
	d.mu.Lock()
	d.stream = s
	d.mu.Unlock()
	d.Opened.Add(1)
	return s, n, nil
}

// Stream returns the last opened stream.
func (d *Driver) Stream() *Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream
}

// Stream mocks an opened device. It owns device buffers large enough for
// deliveries of several blocks.
type Stream struct {
	driver     *Driver
	trampoline *engine.Trampoline
	negotiated engine.Negotiated

	// planar buffers and their views for current delivery.
	in, out         [][]float32
	inView, outView [][]float32
	// interleaved buffers.
	interIn, interOut []float32

	mu        sync.Mutex
	frames    int
	started   atomic.Bool
	closed    atomic.Bool
	callbacks atomic.Int64
	quit      chan struct{}
	done      chan struct{}
}

func newStream(d *Driver, t *engine.Trampoline, n engine.Negotiated) *Stream {
	capacity := n.BlockSize * maxDelivery
	alloc := func(channels int) [][]float32 {
		buf := make([][]float32, channels)
		for i := range buf {
			buf[i] = make([]float32, capacity)
		}
		return buf
	}
	return &Stream{
		driver:     d,
		trampoline: t,
		negotiated: n,
		in:         alloc(n.InputChannels),
		out:        alloc(n.Channels),
		inView:     make([][]float32, n.InputChannels),
		outView:    make([][]float32, n.Channels),
		interIn:    make([]float32, capacity*n.InputChannels),
		interOut:   make([]float32, capacity*n.Channels),
	}
}

// Start implements engine.Stream.
func (s *Stream) Start() error {
	if s.driver.ErrorOnStart != nil {
		return s.driver.ErrorOnStart
	}
	s.started.Store(true)
	if s.driver.Interval > 0 {
		s.quit = make(chan struct{})
		s.done = make(chan struct{})
		go s.clock(s.driver.Interval)
	}
	return nil
}

func (s *Stream) clock(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			s.tick(s.negotiated.BlockSize)
		}
	}
}

// Stop implements engine.Stream.
func (s *Stream) Stop() error {
	s.started.Store(false)
	if s.quit != nil {
		close(s.quit)
		<-s.done
		s.quit, s.done = nil, nil
	}
	return s.driver.ErrorOnStop
}

// Close implements engine.Stream.
func (s *Stream) Close() error {
	s.closed.Store(true)
	s.driver.Closed.Add(1)
	return s.driver.ErrorOnClose
}

// Tick invokes the callback with frames of input. It returns false if
// the stream is not started. Frames are limited to a few blocks.
func (s *Stream) Tick(frames int) bool {
	if !s.started.Load() {
		return false
	}
	s.tick(frames)
	return true
}

// Callback invokes the callback regardless of the stream state, like a
// device that delivers one more buffer after it was stopped.
func (s *Stream) Callback(frames int) {
	s.tick(frames)
}

func (s *Stream) tick(frames int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames = min(frames, s.negotiated.BlockSize*maxDelivery)
	s.frames = frames
	if s.driver.Interleaved {
		s.trampoline.ProcessInterleaved(
			s.interIn[:frames*s.negotiated.InputChannels],
			s.interOut[:frames*s.negotiated.Channels],
			frames,
		)
	} else {
		for i := range s.in {
			s.inView[i] = s.in[i][:frames]
		}
		for i := range s.out {
			s.outView[i] = s.out[i][:frames]
		}
		s.trampoline.ProcessPlanar(s.inView, s.outView, frames)
	}
	s.callbacks.Add(1)
}

// SetInput fills input buffers with the value.
func (s *Stream) SetInput(v float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.in {
		for j := range s.in[i] {
			s.in[i][j] = v
		}
	}
	for i := range s.interIn {
		s.interIn[i] = v
	}
}

// Output returns a copy of the last delivered output in planar layout.
func (s *Stream) Output() [][]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	channels := s.negotiated.Channels
	result := make([][]float32, channels)
	for ch := range result {
		result[ch] = make([]float32, s.frames)
		for i := 0; i < s.frames; i++ {
			if s.driver.Interleaved {
				result[ch][i] = s.interOut[i*channels+ch]
			} else {
				result[ch][i] = s.out[ch][i]
			}
		}
	}
	return result
}

// Callbacks returns number of invoked callbacks.
func (s *Stream) Callbacks() int64 {
	return s.callbacks.Load()
}

// Started reports if the stream is started.
func (s *Stream) Started() bool {
	return s.started.Load()
}

// IsClosed reports if the stream is closed.
func (s *Stream) IsClosed() bool {
	return s.closed.Load()
}
