package subtitle

import (
	"math"
	"strings"
	"unicode/utf8"
)

// DefaultGapBuffer is the minimum silent margin enforced between a cue's end
// and the next cue's start, in milliseconds.
const DefaultGapBuffer = 80

// Redistribute splits each cue's text by policy and reassigns timing inside
// the cue's original window, weighted by part length. The cursor for each
// part is clamped so every remaining part still gets at least 1 ms, and the
// final part always ends exactly at the cue's original end, so the parts'
// total duration equals the original duration with no drift.
//
// Cues whose text is empty after trimming, or whose duration is not positive,
// are dropped.
func Redistribute(cues []Cue, policy Policy) []Cue {
	var out []Cue
	for _, cue := range cues {
		if cue.End <= cue.Start {
			continue
		}
		parts := Split(cue.Text, policy)
		if len(parts) == 0 {
			continue
		}
		if len(parts) == 1 {
			out = append(out, Cue{Index: len(out) + 1, Start: cue.Start, End: cue.End, Text: parts[0]})
			continue
		}

		duration := cue.End - cue.Start
		weights := make([]int, len(parts))
		total := 0
		for i, p := range parts {
			w := utf8.RuneCountInString(p)
			if w < 1 {
				w = 1
			}
			weights[i] = w
			total += w
		}

		cursor := cue.Start
		for i, part := range parts {
			// A cue shorter than its part count can exhaust its window
			// before the last part. Fold the tail into the previous part
			// so no cue ever gets a zero duration.
			if cursor >= cue.End {
				out[len(out)-1].Text += " " + part
				continue
			}
			end := cue.End
			if i < len(parts)-1 {
				reserved := len(parts) - i - 1
				end = cursor + duration*weights[i]/total
				if maxEnd := cue.End - reserved; end > maxEnd {
					end = maxEnd
				}
				if end < cursor+1 {
					end = cursor + 1
				}
			}
			out = append(out, Cue{Index: len(out) + 1, Start: cursor, End: end, Text: part})
			cursor = end
		}
	}
	return out
}

// ClampGaps limits each cue's end to buffer ms before the next cue's start,
// never below start+1, so a cue does not visually persist into the silence
// before the next one. The last cue is untouched. Idempotent.
func ClampGaps(cues []Cue, buffer int) []Cue {
	out := make([]Cue, len(cues))
	copy(out, cues)
	for i := 0; i < len(out)-1; i++ {
		maxEnd := out[i+1].Start - buffer
		if floor := out[i].Start + 1; maxEnd < floor {
			maxEnd = floor
		}
		if out[i].End > maxEnd {
			out[i].End = maxEnd
		}
	}
	return out
}

// WordCues builds cues directly from source word timestamps, one word per
// cue. Each word's end is clamped to buffer ms before the next word's onset
// so the rendered word does not linger across a silence. This produces
// materially tighter sync than proportional estimation and is preferred
// whenever word timestamps exist.
func WordCues(words []Word, buffer int) []Cue {
	var out []Cue
	for i, w := range words {
		text := strings.TrimSpace(w.Word)
		if text == "" {
			continue
		}
		start := toMS(w.Start)
		end := toMS(w.End)
		if i+1 < len(words) {
			if next := toMS(words[i+1].Start) - buffer; end > next {
				end = next
			}
		}
		if end < start+1 {
			end = start + 1
		}
		out = append(out, Cue{Index: len(out) + 1, Start: start, End: end, Text: text})
	}
	return out
}

// SegmentCues converts transcript segments to sentence-level cues, preferring
// the first and last word's real timestamps over the segment boundaries when
// words are available. Empty segments are dropped.
func SegmentCues(segs []Segment) []Cue {
	var out []Cue
	for _, seg := range segs {
		text := CollapseLines(seg.Text)
		if text == "" {
			continue
		}
		start, end := seg.Start, seg.End
		if len(seg.Words) > 0 {
			start = seg.Words[0].Start
			end = seg.Words[len(seg.Words)-1].End
		}
		startMS := toMS(start)
		endMS := toMS(end)
		if endMS < startMS+1 {
			endMS = startMS + 1
		}
		out = append(out, Cue{Index: len(out) + 1, Start: startMS, End: endMS, Text: text})
	}
	return out
}

// Words flattens the per-word timestamps of all segments in order.
func Words(segs []Segment) []Word {
	var words []Word
	for _, s := range segs {
		words = append(words, s.Words...)
	}
	return words
}

func toMS(seconds float64) int {
	return int(math.Round(seconds * 1000))
}
