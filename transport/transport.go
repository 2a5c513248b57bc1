// Package transport provides a lock-free clock shared between the control
// thread and the real-time thread.
//
// Every field of the clock is an independent atomic. A single field is
// never observed torn, but fields are not updated together: a reader may
// observe a new tempo with an old time signature if both were changed
// while it was reading. Snapshot is a plain copy of the fields taken at
// the start of a block, it is not a transaction.
package transport

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

const (
	// DefaultTempo is used when a clock is created.
	DefaultTempo = 120.0
	// DefaultNumerator and DefaultDenominator form a 4/4 time signature.
	DefaultNumerator   = 4
	DefaultDenominator = 4
)

// ErrInvalidTempo is returned when tempo is not a positive finite number.
var ErrInvalidTempo = errors.New("invalid tempo")

// Clock holds tempo, time signature, sample position and play state.
// Setters are called from the control thread, Advance and Read from the
// real-time thread.
type Clock struct {
	sampleRate  int
	tempo       atomic.Uint64 // float64 bits
	numerator   atomic.Uint32
	denominator atomic.Uint32
	position    atomic.Int64
	playing     atomic.Bool
}

// Snapshot is a copy of clock fields read at the start of a block.
type Snapshot struct {
	SampleRate  int
	Tempo       float64
	Numerator   int
	Denominator int
	// Position is a sample position of the first frame of the block.
	Position int64
	Playing  bool
}

// New returns a stopped clock at position zero with default tempo and
// time signature.
func New(sampleRate int) *Clock {
	c := Clock{sampleRate: sampleRate}
	c.tempo.Store(math.Float64bits(DefaultTempo))
	c.numerator.Store(DefaultNumerator)
	c.denominator.Store(DefaultDenominator)
	return &c
}

// SampleRate returns sample rate the clock was created with.
func (c *Clock) SampleRate() int {
	return c.sampleRate
}

// SetTempo changes tempo in beats per minute.
func (c *Clock) SetTempo(bpm float64) error {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTempo, bpm)
	}
	c.tempo.Store(math.Float64bits(bpm))
	return nil
}

// SetTimeSignature changes time signature. Denominator must be a power of
// two.
func (c *Clock) SetTimeSignature(numerator, denominator int) error {
	if numerator < 1 || denominator < 1 || denominator&(denominator-1) != 0 {
		return fmt.Errorf("invalid time signature %d/%d", numerator, denominator)
	}
	c.numerator.Store(uint32(numerator))
	c.denominator.Store(uint32(denominator))
	return nil
}

// Play starts advancing the position.
func (c *Clock) Play() {
	c.playing.Store(true)
}

// Pause stops advancing the position and keeps it.
func (c *Clock) Pause() {
	c.playing.Store(false)
}

// Stop pauses the clock and rewinds it to zero.
func (c *Clock) Stop() {
	c.playing.Store(false)
	c.position.Store(0)
}

// Locate moves the position to the sample.
func (c *Clock) Locate(sample int64) {
	c.position.Store(sample)
}

// Playing reports if the clock is advancing.
func (c *Clock) Playing() bool {
	return c.playing.Load()
}

// Position returns current sample position.
func (c *Clock) Position() int64 {
	return c.position.Load()
}

// Tempo returns current tempo.
func (c *Clock) Tempo() float64 {
	return math.Float64frombits(c.tempo.Load())
}

// Advance moves the position by frames if the clock is playing.
func (c *Clock) Advance(frames int) {
	if c.playing.Load() {
		c.position.Add(int64(frames))
	}
}

// Read fills s with current field values.
func (c *Clock) Read(s *Snapshot) {
	s.SampleRate = c.sampleRate
	s.Tempo = math.Float64frombits(c.tempo.Load())
	s.Numerator = int(c.numerator.Load())
	s.Denominator = int(c.denominator.Load())
	s.Position = c.position.Load()
	s.Playing = c.playing.Load()
}

// Snapshot returns a copy of current field values.
func (c *Clock) Snapshot() Snapshot {
	var s Snapshot
	c.Read(&s)
	return s
}

// SamplesPerBeat returns number of samples in one quarter note.
func (s Snapshot) SamplesPerBeat() float64 {
	return 60.0 / s.Tempo * float64(s.SampleRate)
}

// Beats returns position in quarter notes.
func (s Snapshot) Beats() float64 {
	return float64(s.Position) / s.SamplesPerBeat()
}

// BeatsPerBar returns number of quarter notes in one bar.
func (s Snapshot) BeatsPerBar() float64 {
	return float64(s.Numerator) * 4 / float64(s.Denominator)
}

// Bar returns zero-based index of the bar containing the position.
func (s Snapshot) Bar() int {
	return int(math.Floor(s.Beats() / s.BeatsPerBar()))
}

// BarStart returns position of the current bar start in quarter notes.
func (s Snapshot) BarStart() float64 {
	return float64(s.Bar()) * s.BeatsPerBar()
}
