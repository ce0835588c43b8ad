package subtitle

import (
	"strings"
	"unicode"
)

const minFontSize = 6

// charUnits estimates the visual width of text in font-size units. The
// weights are empirical, not measured glyph metrics.
func charUnits(text string) float64 {
	total := 0.0
	for _, r := range text {
		switch {
		case strings.ContainsRune("MW@#%&", r):
			total += 1.0
		case unicode.IsUpper(r):
			total += 0.78
		case unicode.IsLower(r), unicode.IsDigit(r):
			total += 0.62
		case unicode.IsSpace(r):
			total += 0.34
		default:
			total += 0.44
		}
	}
	return total
}

// FitFontSize shrinks requested so the widest cue fits on a single line of
// width pixels, with a side margin of max(8% of width, 64 px) on each side.
// The result never drops below the legibility floor of 6 and never exceeds
// requested; with no cue text, requested passes through unchanged. Advisory
// sizing only: cue text is not reflowed.
func FitFontSize(cues []Cue, width, requested int) int {
	maxUnits := 0.0
	for _, c := range cues {
		if u := charUnits(CollapseLines(c.Text)); u > maxUnits {
			maxUnits = u
		}
	}
	if maxUnits <= 0 {
		return requested
	}

	margin := width * 8 / 100
	if margin < 64 {
		margin = 64
	}
	available := width - 2*margin
	if available < 120 {
		available = 120
	}

	size := int(float64(available) / (maxUnits * 0.9))
	if size > requested {
		size = requested
	}
	if size < minFontSize {
		size = minFontSize
	}
	return size
}
