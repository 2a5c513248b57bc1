// Package signal provides non-owning views over sample memory and helpers
// to convert signals. It allows to:
//   - address interleaved and planar memory through a single View type
//   - convert bit depth for int signals
//   - convert between sample counts and durations
package signal

import (
	"math"
	"time"
)

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// InterInt is an interleaved int signal.
type InterInt struct {
	Data        []int
	NumChannels int
	BitDepth
}

// BitDepth contains values required for int-to-float and backward conversion.
type BitDepth int

// devider is used when int to float conversion is done.
func (bitDepth BitDepth) devider() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth24:
		return 1<<23 - 1
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// FramesOf returns number of frames that last for d at this sample rate.
// The result is rounded up to a whole frame.
func FramesOf(sampleRate int, d time.Duration) int {
	return int(math.Ceil(d.Seconds()*float64(sampleRate) - 1e-9))
}

// AsFloat32 converts interleaved int signal to non-interleaved float32.
// Incomplete trailing frame is padded with zeros.
func (ints InterInt) AsFloat32() [][]float32 {
	if ints.Data == nil || ints.NumChannels == 0 {
		return nil
	}
	floats := make([][]float32, ints.NumChannels)
	frames := int(math.Ceil(float64(len(ints.Data)) / float64(ints.NumChannels)))

	// determine the devider for bit depth conversion
	devider := float64(ints.BitDepth.devider())

	for i := range floats {
		floats[i] = make([]float32, frames)
		pos := 0
		for j := i; j < len(ints.Data); j = j + ints.NumChannels {
			floats[i][pos] = float32(float64(ints.Data[j]) / devider)
			pos++
		}
	}
	return floats
}

// Quantize converts float sample into int of this bit depth. Samples
// outside of [-1, 1] are clipped.
func (bitDepth BitDepth) Quantize(v float32) int {
	switch {
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	return int(math.Round(float64(v) * float64(bitDepth.devider())))
}
