package signal

import "fmt"

// Layout defines how channels are placed in the sample memory.
type Layout uint8

const (
	// Interleaved layout stores samples frame by frame: L R L R ...
	Interleaved Layout = iota
	// Planar layout stores samples channel by channel: L L ... R R ...
	Planar
)

func (l Layout) String() string {
	switch l {
	case Interleaved:
		return "interleaved"
	case Planar:
		return "planar"
	default:
		return fmt.Sprintf("layout(%d)", l)
	}
}

// View is a non-owning, stride-aware window over float32 sample memory.
// It is valid only for the duration of the processing call that produced
// it and must never be retained after that call returns.
//
// Constructing a view over memory that cannot hold the described frames
// is a caller fault and panics.
type View struct {
	data  []float32
	chans [][]float32

	offset   int
	frames   int
	channels int
	// stride is a distance between two consecutive frames of one channel.
	stride int
	// step is a distance between the same frame of two adjacent channels.
	step   int
	layout Layout
}

// InterleavedView wraps interleaved memory.
func InterleavedView(data []float32, channels, frames int) View {
	return Strided(data, channels, frames, channels, 1, Interleaved)
}

// PlanarView wraps contiguous channel-major memory.
func PlanarView(data []float32, channels, frames int) View {
	return Strided(data, channels, frames, 1, frames, Planar)
}

// Channels wraps non-contiguous planar memory, one slice per channel.
// That is how most drivers hand out non-interleaved buffers.
func Channels(chans [][]float32, frames int) View {
	for i := range chans {
		if len(chans[i]) < frames {
			panic(fmt.Sprintf("signal: channel %d holds %d samples, need %d", i, len(chans[i]), frames))
		}
	}
	return View{
		chans:    chans,
		frames:   frames,
		channels: len(chans),
		stride:   1,
		layout:   Planar,
	}
}

// Strided is the general form of a view: sample (ch, i) is located at
// data[ch*step+i*stride].
func Strided(data []float32, channels, frames, stride, step int, layout Layout) View {
	if channels < 0 || frames < 0 || stride < 1 || step < 0 {
		panic(fmt.Sprintf("signal: invalid view channels=%d frames=%d stride=%d step=%d", channels, frames, stride, step))
	}
	if channels > 0 && frames > 0 {
		last := (channels-1)*step + (frames-1)*stride
		if last >= len(data) {
			panic(fmt.Sprintf("signal: view needs %d samples, memory holds %d", last+1, len(data)))
		}
	}
	return View{
		data:     data,
		frames:   frames,
		channels: channels,
		stride:   stride,
		step:     step,
		layout:   layout,
	}
}

// Allocate returns a view over newly allocated memory. It must not be
// called on the real-time thread.
func Allocate(channels, frames int, layout Layout) View {
	data := make([]float32, channels*frames)
	if layout == Interleaved {
		return InterleavedView(data, channels, frames)
	}
	return PlanarView(data, channels, frames)
}

// Frames returns number of frames in the view.
func (v View) Frames() int {
	return v.frames
}

// NumChannels returns number of channels in the view.
func (v View) NumChannels() int {
	return v.channels
}

// Layout returns the memory layout of the view.
func (v View) Layout() Layout {
	return v.layout
}

// Stride returns the distance between consecutive frames of a channel.
func (v View) Stride() int {
	return v.stride
}

// IsZero reports if the view covers no memory.
func (v View) IsZero() bool {
	return v.data == nil && v.chans == nil
}

func (v View) index(ch, i int) int {
	if uint(ch) >= uint(v.channels) || uint(i) >= uint(v.frames) {
		panic(fmt.Sprintf("signal: sample (%d, %d) out of range (%d, %d)", ch, i, v.channels, v.frames))
	}
	return v.offset + ch*v.step + i*v.stride
}

// At returns sample i of channel ch.
func (v View) At(ch, i int) float32 {
	if v.chans != nil {
		if uint(i) >= uint(v.frames) {
			panic(fmt.Sprintf("signal: frame %d out of range %d", i, v.frames))
		}
		return v.chans[ch][v.offset+i]
	}
	return v.data[v.index(ch, i)]
}

// Set assigns sample i of channel ch.
func (v View) Set(ch, i int, s float32) {
	if v.chans != nil {
		if uint(i) >= uint(v.frames) {
			panic(fmt.Sprintf("signal: frame %d out of range %d", i, v.frames))
		}
		v.chans[ch][v.offset+i] = s
		return
	}
	v.data[v.index(ch, i)] = s
}

// Add accumulates s into sample i of channel ch.
func (v View) Add(ch, i int, s float32) {
	if v.chans != nil {
		if uint(i) >= uint(v.frames) {
			panic(fmt.Sprintf("signal: frame %d out of range %d", i, v.frames))
		}
		v.chans[ch][v.offset+i] += s
		return
	}
	v.data[v.index(ch, i)] += s
}

// Slice returns a sub-range [start, end) of frames.
func (v View) Slice(start, end int) View {
	if start < 0 || end < start || end > v.frames {
		panic(fmt.Sprintf("signal: slice [%d:%d] out of range %d", start, end, v.frames))
	}
	v.offset += start * v.stride
	v.frames = end - start
	return v
}

// Channel returns the samples of channel ch as a contiguous slice. It
// panics if the view is interleaved.
func (v View) Channel(ch int) []float32 {
	if v.stride != 1 {
		panic("signal: channel of interleaved view is not contiguous")
	}
	if uint(ch) >= uint(v.channels) {
		panic(fmt.Sprintf("signal: channel %d out of range %d", ch, v.channels))
	}
	if v.chans != nil {
		return v.chans[ch][v.offset : v.offset+v.frames]
	}
	start := v.offset + ch*v.step
	return v.data[start : start+v.frames]
}

// Clear fills the view with silence.
func (v View) Clear() {
	if v.stride == 1 {
		for ch := 0; ch < v.channels; ch++ {
			clear(v.Channel(ch))
		}
		return
	}
	for ch := 0; ch < v.channels; ch++ {
		for i := 0; i < v.frames; i++ {
			v.Set(ch, i, 0)
		}
	}
}

// CopyFrom copies src into v. Both views must have the same number of
// frames. Channels beyond the smaller channel count are left untouched.
func (v View) CopyFrom(src View) {
	if src.frames != v.frames {
		panic(fmt.Sprintf("signal: copy %d frames into %d", src.frames, v.frames))
	}
	channels := min(v.channels, src.channels)
	if v.stride == 1 && src.stride == 1 {
		for ch := 0; ch < channels; ch++ {
			copy(v.Channel(ch), src.Channel(ch))
		}
		return
	}
	for ch := 0; ch < channels; ch++ {
		for i := 0; i < v.frames; i++ {
			v.Set(ch, i, src.At(ch, i))
		}
	}
}

// MixFrom adds src into v. Both views must have the same number of frames.
func (v View) MixFrom(src View) {
	if src.frames != v.frames {
		panic(fmt.Sprintf("signal: mix %d frames into %d", src.frames, v.frames))
	}
	channels := min(v.channels, src.channels)
	if v.stride == 1 && src.stride == 1 {
		for ch := 0; ch < channels; ch++ {
			dst, s := v.Channel(ch), src.Channel(ch)
			for i := range dst {
				dst[i] += s[i]
			}
		}
		return
	}
	for ch := 0; ch < channels; ch++ {
		for i := 0; i < v.frames; i++ {
			v.Add(ch, i, src.At(ch, i))
		}
	}
}

// Scale multiplies every sample by g.
func (v View) Scale(g float32) {
	for ch := 0; ch < v.channels; ch++ {
		for i := 0; i < v.frames; i++ {
			v.Set(ch, i, v.At(ch, i)*g)
		}
	}
}
