package vst2

import (
	"math"

	"pipelined.dev/engine/transport"
)

// TimeInfo is the transport position in the form plugins request it.
type TimeInfo struct {
	SampleRate int
	SamplePos  int64
	Tempo      float64
	// PPQPos is the position in quarter notes, BarPos is the position of
	// the current bar start in quarter notes.
	PPQPos      float64
	BarPos      float64
	NotesPerBar int
	Denominator int
	Playing     bool
}

// NewTimeInfo converts the snapshot of a block.
func NewTimeInfo(s *transport.Snapshot) TimeInfo {
	info := TimeInfo{
		SampleRate:  s.SampleRate,
		SamplePos:   s.Position,
		Tempo:       s.Tempo,
		NotesPerBar: s.Numerator,
		Denominator: s.Denominator,
		Playing:     s.Playing,
	}
	if s.Tempo > 0 && s.SampleRate > 0 {
		info.PPQPos = s.Beats()
		if s.Numerator > 0 && s.Denominator > 0 {
			info.BarPos = s.BarStart()
		}
	}
	if math.IsNaN(info.PPQPos) || math.IsInf(info.PPQPos, 0) {
		info.PPQPos, info.BarPos = 0, 0
	}
	return info
}
