package nodes

import (
	"math"

	"pipelined.dev/engine/unit"
	"pipelined.dev/engine/wav"
)

// SamplePlayer plays a clip when a note-on event arrives. Velocity
// scales the level, note-off stops playback. Clips recorded at another
// sample rate are resampled with linear interpolation.
type SamplePlayer struct {
	// Loop restarts the clip when it ends.
	Loop bool

	clip     wav.Clip
	step     float64
	pos      float64
	level    float32
	playing  bool
	channels int
}

// NewSamplePlayer returns a player of the clip.
func NewSamplePlayer(clip wav.Clip) *SamplePlayer {
	return &SamplePlayer{clip: clip}
}

// Prepare implements unit.Unit.
func (p *SamplePlayer) Prepare(cfg unit.Config) error {
	if p.clip.Frames() == 0 {
		return unit.Errorf(p, "empty clip")
	}
	if p.clip.SampleRate <= 0 {
		return unit.Errorf(p, "invalid clip sample rate: %d", p.clip.SampleRate)
	}
	p.step = float64(p.clip.SampleRate) / float64(cfg.SampleRate)
	p.channels = len(p.clip.Data)
	return nil
}

// Trigger starts playback from the beginning. It must not be called
// while the unit is processed.
func (p *SamplePlayer) Trigger(level float32) {
	p.pos = 0
	p.level = level
	p.playing = true
}

// Process implements unit.Unit.
func (p *SamplePlayer) Process(ctx *unit.Context) {
	pos := 0
	for _, e := range ctx.Events {
		switch {
		case e.IsNoteOn():
			off := clampOffset(e.Offset, pos, ctx.Frames)
			p.render(ctx, pos, off)
			_, velocity := e.Note()
			p.Trigger(float32(velocity) / 127)
			pos = off
		case e.IsNoteOff():
			off := clampOffset(e.Offset, pos, ctx.Frames)
			p.render(ctx, pos, off)
			p.playing = false
			pos = off
		}
	}
	p.render(ctx, pos, ctx.Frames)
}

func (p *SamplePlayer) render(ctx *unit.Context, start, end int) {
	out := ctx.Outputs[0]
	frames := p.clip.Frames()
	for i := start; i < end; i++ {
		if !p.playing {
			for ch := 0; ch < out.NumChannels(); ch++ {
				out.Set(ch, i, 0)
			}
			continue
		}
		idx := int(p.pos)
		frac := float32(p.pos - float64(idx))
		for ch := 0; ch < out.NumChannels(); ch++ {
			// mono clips are spread over all channels.
			data := p.clip.Data[min(ch, p.channels-1)]
			v := data[idx]
			if idx+1 < frames {
				v += (data[idx+1] - v) * frac
			}
			out.Set(ch, i, v*p.level)
		}
		p.pos += p.step
		if int(p.pos) >= frames {
			if p.Loop {
				// step may exceed the clip length.
				p.pos = math.Mod(p.pos, float64(frames))
			} else {
				p.playing = false
			}
		}
	}
}

// Playing reports if the clip is playing.
func (p *SamplePlayer) Playing() bool {
	return p.playing
}

// Reset implements unit.Unit.
func (p *SamplePlayer) Reset() {
	p.pos = 0
	p.playing = false
}

// ParallelSafe implements unit.Unit.
func (p *SamplePlayer) ParallelSafe() bool {
	return true
}
