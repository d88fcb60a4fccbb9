// Package scenario prepares recorded scenarios for the engine: sparse
// position samples become one frame per tick, and raw key events can be
// summarized as press intervals for display.
package scenario

import (
	"sort"

	"helixpi/internal/model"
)

// Interpolate returns one frame for every integer between the first and the
// last sample, filling gaps linearly. Samples may arrive unordered; a later
// duplicate of a frame number wins.
func Interpolate(samples []model.Frame) []model.Frame {
	if len(samples) == 0 {
		return nil
	}
	sorted := make([]model.Frame, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Frame < sorted[j].Frame
	})

	unique := sorted[:0]
	for _, s := range sorted {
		if n := len(unique); n > 0 && unique[n-1].Frame == s.Frame {
			unique[n-1] = s
			continue
		}
		unique = append(unique, s)
	}

	first, last := unique[0].Frame, unique[len(unique)-1].Frame
	dense := make([]model.Frame, 0, last-first+1)
	for i := 0; i < len(unique)-1; i++ {
		from, to := unique[i], unique[i+1]
		span := float64(to.Frame - from.Frame)
		delta := to.Position.Subtract(from.Position)
		for f := from.Frame; f < to.Frame; f++ {
			t := float64(f-from.Frame) / span
			dense = append(dense, model.Frame{Frame: f, Position: from.Position.Add(delta.Multiply(t))})
		}
	}
	return append(dense, unique[len(unique)-1])
}

// IsDense reports whether frames cover consecutive frame numbers.
func IsDense(frames []model.Frame) bool {
	for i := 1; i < len(frames); i++ {
		if frames[i].Frame != frames[i-1].Frame+1 {
			return false
		}
	}
	return true
}

// Timeline returns samples as one frame per tick from frame 0 to the last
// sample, so that trace index and frame number coincide. Frames before the
// first sample hold its position; frames before 0 are dropped.
func Timeline(samples []model.Frame) []model.Frame {
	if len(samples) > 0 && samples[0].Frame == 0 && IsDense(samples) {
		return append([]model.Frame(nil), samples...)
	}
	dense := Interpolate(samples)
	if len(dense) == 0 {
		return nil
	}

	first := dense[0]
	if first.Frame > 0 {
		out := make([]model.Frame, 0, first.Frame+len(dense))
		for f := 0; f < first.Frame; f++ {
			out = append(out, model.Frame{Frame: f, Position: first.Position})
		}
		return append(out, dense...)
	}
	for i, f := range dense {
		if f.Frame == 0 {
			return dense[i:]
		}
	}
	return nil
}

// Densify returns a copy of s with every actor trace turned into a Timeline.
func Densify(s model.Scenario) model.Scenario {
	out := s
	out.Actors = make(map[string][]model.Frame, len(s.Actors))
	for actor, frames := range s.Actors {
		out.Actors[actor] = Timeline(frames)
	}
	return out
}

// DensifyAll applies Densify to each scenario.
func DensifyAll(scenarios []model.Scenario) []model.Scenario {
	out := make([]model.Scenario, len(scenarios))
	for i, s := range scenarios {
		out[i] = Densify(s)
	}
	return out
}

// Range is a contiguous press of Key, from the keydown frame up to the keyup
// frame.
type Range struct {
	Key  string `json:"key"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

// InputRanges turns keydown/keyup events into press intervals per key. A key
// still held after the last event is closed at end. Repeated keydowns and
// unmatched keyups are ignored.
func InputRanges(events map[int][]model.InputEvent, end int) map[string][]Range {
	frames := make([]int, 0, len(events))
	for frame := range events {
		frames = append(frames, frame)
	}
	sort.Ints(frames)

	open := map[string]int{}
	ranges := map[string][]Range{}
	for _, frame := range frames {
		for _, ev := range events[frame] {
			start, held := open[ev.Key]
			switch ev.Type {
			case model.KeyDown:
				if !held {
					open[ev.Key] = frame
				}
			case model.KeyUp:
				if held {
					ranges[ev.Key] = append(ranges[ev.Key], Range{Key: ev.Key, From: start, To: frame})
					delete(open, ev.Key)
				}
			}
		}
	}

	keys := make([]string, 0, len(open))
	for key := range open {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		to := end
		if to < open[key] {
			to = open[key]
		}
		ranges[key] = append(ranges[key], Range{Key: key, From: open[key], To: to})
	}
	return ranges
}
