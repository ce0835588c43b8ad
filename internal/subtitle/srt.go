package subtitle

import (
	"fmt"
	"os"
	"strings"
)

// FormatTimestamp renders milliseconds as an SRT timestamp HH:MM:SS,mmm.
// Negative values clamp to zero.
func FormatTimestamp(ms int) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	m := ms / 60000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// ParseTimestamp parses an SRT timestamp HH:MM:SS,mmm into milliseconds.
func ParseTimestamp(ts string) (int, error) {
	var h, m, s, ms int
	if _, err := fmt.Sscanf(strings.TrimSpace(ts), "%d:%d:%d,%d", &h, &m, &s, &ms); err != nil {
		return 0, fmt.Errorf("bad timestamp %q: %w", ts, err)
	}
	return ((h*60+m)*60+s)*1000 + ms, nil
}

// Parse reads SRT content leniently: blocks without a timing line, with a
// malformed timestamp, or with no text are skipped rather than failing the
// whole file. Transcription output is noisy; a bad block should not cost the
// rest of the subtitles.
func Parse(content string) []Cue {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var cues []Cue
	for _, block := range strings.Split(strings.TrimSpace(content), "\n\n") {
		var lines []string
		for _, line := range strings.Split(block, "\n") {
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
		timeIdx := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timeIdx = i
				break
			}
		}
		if timeIdx < 0 {
			continue
		}
		startStr, endStr, _ := strings.Cut(lines[timeIdx], "-->")
		start, err := ParseTimestamp(startStr)
		if err != nil {
			continue
		}
		end, err := ParseTimestamp(endStr)
		if err != nil {
			continue
		}
		text := strings.TrimSpace(strings.Join(lines[timeIdx+1:], "\n"))
		if text == "" {
			continue
		}
		cues = append(cues, Cue{Index: len(cues) + 1, Start: start, End: end, Text: text})
	}
	return cues
}

// Format serializes cues as an SRT document, renumbering from 1.
func Format(cues []Cue) string {
	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", i+1, FormatTimestamp(c.Start), FormatTimestamp(c.End), c.Text)
		if i < len(cues)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// ReadFile parses the SRT file at path.
func ReadFile(path string) ([]Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data)), nil
}

// WriteFile serializes cues to path.
func WriteFile(path string, cues []Cue) error {
	return os.WriteFile(path, []byte(Format(cues)), 0644)
}
