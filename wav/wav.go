// Package wav decodes wav clips for sample playback and records graph
// output into wav files.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"pipelined.dev/engine/signal"
	"pipelined.dev/engine/unit"
)

// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
var ErrUnsupportedBitDepth = errors.New("only 16, 24 and 32 bit depth is supported")

// ErrInvalidFile is returned when decoded file is not a valid wav.
var ErrInvalidFile = errors.New("wav is not valid")

// Clip is a decoded wav file in planar layout.
type Clip struct {
	Data       [][]float32
	SampleRate int
}

// Frames returns length of the clip in frames.
func (c Clip) Frames() int {
	if len(c.Data) == 0 {
		return 0
	}
	return len(c.Data[0])
}

// Duration returns length of the clip.
func (c Clip) Duration() time.Duration {
	return signal.DurationOf(c.SampleRate, int64(c.Frames()))
}

// Load decodes wav file.
func Load(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, err
	}
	clip, err := Decode(f)
	if cerr := f.Close(); err == nil && cerr != nil {
		return Clip{}, fmt.Errorf("failed to close %v: %w", path, cerr)
	}
	if err != nil {
		return Clip{}, fmt.Errorf("failed to decode %v: %w", path, err)
	}
	return clip, nil
}

// Decode reads the whole wav stream.
func Decode(r io.ReadSeeker) (Clip, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return Clip{}, ErrInvalidFile
	}
	if !supported(signal.BitDepth(decoder.BitDepth)) {
		return Clip{}, ErrUnsupportedBitDepth
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Clip{}, err
	}
	return Clip{
		Data: signal.InterInt{
			Data:        buf.Data,
			NumChannels: buf.Format.NumChannels,
			BitDepth:    signal.BitDepth(decoder.BitDepth),
		}.AsFloat32(),
		SampleRate: int(decoder.SampleRate),
	}, nil
}

func supported(bitDepth signal.BitDepth) bool {
	switch bitDepth {
	case signal.BitDepth16, signal.BitDepth24, signal.BitDepth32:
		return true
	}
	return false
}

// Recorder is a unit that keeps its input in memory and writes it into a
// wav file when released. It passes input through to its output when the
// output is connected. Recording stops when the buffer is full.
type Recorder struct {
	path     string
	bitDepth signal.BitDepth
	length   time.Duration

	sampleRate int
	channels   int
	data       []int
	frames     int
}

// NewRecorder creates a recorder that keeps up to length of signal.
func NewRecorder(path string, bitDepth signal.BitDepth, length time.Duration) (*Recorder, error) {
	if !supported(bitDepth) {
		return nil, ErrUnsupportedBitDepth
	}
	if length <= 0 {
		return nil, fmt.Errorf("invalid recording length: %v", length)
	}
	return &Recorder{
		path:     path,
		bitDepth: bitDepth,
		length:   length,
	}, nil
}

// Prepare implements unit.Unit.
func (r *Recorder) Prepare(cfg unit.Config) error {
	r.sampleRate = cfg.SampleRate
	r.channels = cfg.Channels
	r.data = make([]int, signal.FramesOf(cfg.SampleRate, r.length)*cfg.Channels)
	r.frames = 0
	return nil
}

// Process implements unit.Unit.
func (r *Recorder) Process(ctx *unit.Context) {
	in := ctx.Inputs[0]
	if len(ctx.Outputs) > 0 {
		ctx.Outputs[0].CopyFrom(in)
	}
	frames := min(ctx.Frames, len(r.data)/r.channels-r.frames)
	channels := min(in.NumChannels(), r.channels)
	for i := 0; i < frames; i++ {
		pos := (r.frames + i) * r.channels
		for ch := 0; ch < channels; ch++ {
			r.data[pos+ch] = r.bitDepth.Quantize(in.At(ch, i))
		}
	}
	r.frames += frames
}

// Reset implements unit.Unit.
func (r *Recorder) Reset() {
	r.frames = 0
}

// ParallelSafe implements unit.Unit.
func (r *Recorder) ParallelSafe() bool {
	return true
}

// Frames returns number of recorded frames.
func (r *Recorder) Frames() int {
	return r.frames
}

// Release writes recorded signal into the file.
func (r *Recorder) Release() error {
	if r.frames == 0 {
		return nil
	}
	f, err := os.Create(r.path)
	if err != nil {
		return err
	}
	if err := r.encode(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode %v: %w", r.path, err)
	}
	r.frames = 0
	return f.Close()
}

func (r *Recorder) encode(w io.WriteSeeker) error {
	encoder := wav.NewEncoder(w, r.sampleRate, int(r.bitDepth), r.channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: r.channels,
			SampleRate:  r.sampleRate,
		},
		Data:           r.data[:r.frames*r.channels],
		SourceBitDepth: int(r.bitDepth),
	}
	if err := encoder.Write(buf); err != nil {
		return err
	}
	return encoder.Close()
}
