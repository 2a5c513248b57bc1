package nodes

import (
	"math"
	"time"

	"pipelined.dev/engine/unit"
)

// Compressor parameters.
const (
	CompressorThreshold uint32 = iota
	CompressorRatio
	CompressorAttack
	CompressorRelease
	CompressorMakeup
)

// CompressorSettings defines dynamics compression.
type CompressorSettings struct {
	Threshold float64 // Threshold in dB.
	Ratio     float64 // Compression ratio, 4 for 4:1.
	Attack    time.Duration
	Release   time.Duration
	Makeup    float64 // Makeup gain in dB.
}

// Compressor is a feed-forward compressor with a peak detector linked
// across channels.
type Compressor struct {
	settings   CompressorSettings
	sampleRate float64

	attack    float64
	release   float64
	envelope  float64
	reduction float64
}

// NewCompressor returns a compressor.
func NewCompressor(settings CompressorSettings) *Compressor {
	return &Compressor{settings: settings}
}

// Prepare implements unit.Unit.
func (c *Compressor) Prepare(cfg unit.Config) error {
	if c.settings.Ratio < 1 {
		return unit.Errorf(c, "ratio %v is less than 1", c.settings.Ratio)
	}
	if c.settings.Attack <= 0 || c.settings.Release <= 0 {
		return unit.Errorf(c, "attack %v and release %v must be positive", c.settings.Attack, c.settings.Release)
	}
	c.sampleRate = float64(cfg.SampleRate)
	c.update()
	return nil
}

func (c *Compressor) update() {
	c.attack = coefficient(c.settings.Attack, c.sampleRate)
	c.release = coefficient(c.settings.Release, c.sampleRate)
}

// coefficient returns one-pole smoothing coefficient for time constant d.
func coefficient(d time.Duration, sampleRate float64) float64 {
	return math.Exp(-1 / (d.Seconds() * sampleRate))
}

// Process implements unit.Unit.
func (c *Compressor) Process(ctx *unit.Context) {
	in, out := ctx.Inputs[0], ctx.Outputs[0]
	channels := min(in.NumChannels(), out.NumChannels())
	makeup := Decibels(c.settings.Makeup)
	slope := 1 - 1/c.settings.Ratio
	for i := 0; i < ctx.Frames; i++ {
		var peak float64
		for ch := 0; ch < channels; ch++ {
			peak = math.Max(peak, math.Abs(float64(in.At(ch, i))))
		}
		if peak > c.envelope {
			c.envelope = c.attack*c.envelope + (1-c.attack)*peak
		} else {
			c.envelope = c.release*c.envelope + (1-c.release)*peak
		}

		var reduction float64
		if c.envelope > 0 {
			over := 20*math.Log10(c.envelope) - c.settings.Threshold
			if over > 0 {
				reduction = over * slope
			}
		}
		c.reduction = reduction
		gain := float32(Decibels(-reduction) * makeup)
		for ch := 0; ch < channels; ch++ {
			out.Set(ch, i, in.At(ch, i)*gain)
		}
	}
}

// Reduction returns gain reduction in dB applied to the last sample.
func (c *Compressor) Reduction() float64 {
	return c.reduction
}

// Reset implements unit.Unit.
func (c *Compressor) Reset() {
	c.envelope = 0
	c.reduction = 0
}

// ParallelSafe implements unit.Unit.
func (c *Compressor) ParallelSafe() bool {
	return true
}

// SetParam implements unit.Parameterized. Attack and release are in
// seconds.
func (c *Compressor) SetParam(id uint32, value float64, _ int32) {
	switch id {
	case CompressorThreshold:
		c.settings.Threshold = value
	case CompressorRatio:
		if value >= 1 {
			c.settings.Ratio = value
		}
	case CompressorAttack:
		if value > 0 {
			c.settings.Attack = time.Duration(value * float64(time.Second))
			c.update()
		}
	case CompressorRelease:
		if value > 0 {
			c.settings.Release = time.Duration(value * float64(time.Second))
			c.update()
		}
	case CompressorMakeup:
		c.settings.Makeup = value
	}
}
