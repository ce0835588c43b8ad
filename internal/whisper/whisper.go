// Package whisper drives the external whisper CLI and parses its JSON
// output into transcript segments with word-level timestamps.
package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"beatcut/internal/subtitle"
)

// ErrNoTranscript is returned when transcription reports success but the
// expected output file cannot be located.
var ErrNoTranscript = errors.New("transcript output not found")

// Available returns true if the whisper CLI is on the PATH.
func Available() bool {
	_, err := exec.LookPath("whisper")
	return err == nil
}

// result mirrors the whisper JSON output structure.
type result struct {
	Segments []subtitle.Segment `json:"segments"`
}

// Transcribe runs the whisper CLI over audioPath and returns the parsed
// segments, including per-word timestamps. Output files land in outputDir.
func Transcribe(ctx context.Context, audioPath, model, language, outputDir string) ([]subtitle.Segment, error) {
	if _, err := exec.LookPath("whisper"); err != nil {
		return nil, fmt.Errorf("whisper not found: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	slog.Info("transcribing audio",
		"file", filepath.Base(audioPath), "model", model, "language", language)

	cmd := exec.CommandContext(ctx,
		"whisper", audioPath,
		"--model", model,
		"--language", language,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--word_timestamps", "True",
		"--temperature", "0",
		"--condition_on_previous_text", "False",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("whisper failed: %w\n%s", err, string(out))
	}

	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, stem+".json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoTranscript, jsonPath)
		}
		return nil, err
	}
	return ParseResult(data)
}

// ParseResult decodes whisper's JSON output.
func ParseResult(data []byte) ([]subtitle.Segment, error) {
	var res result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}
	return res.Segments, nil
}

// FindGeneratedSRT scans outputDir for an SRT produced for audioPath,
// tolerating whisper's varying naming rules. Newest files are considered
// first; an exact stem match wins, then a prefix match, then a lone
// candidate. Returns "" when nothing plausible is found.
func FindGeneratedSRT(audioPath, outputDir string) string {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return ""
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var srts []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".srt") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		srts = append(srts, candidate{filepath.Join(outputDir, e.Name()), info.ModTime()})
	}
	if len(srts) == 0 {
		return ""
	}
	sort.Slice(srts, func(i, j int) bool { return srts[i].mod.After(srts[j].mod) })

	audioName := strings.ToLower(filepath.Base(audioPath))
	audioStem := strings.TrimSuffix(audioName, strings.ToLower(filepath.Ext(audioName)))

	for _, c := range srts {
		stem := strings.TrimSuffix(strings.ToLower(filepath.Base(c.path)), ".srt")
		if stem == audioStem {
			return c.path
		}
	}
	for _, c := range srts {
		stem := strings.TrimSuffix(strings.ToLower(filepath.Base(c.path)), ".srt")
		if stem == audioName || strings.HasPrefix(stem, audioStem) {
			return c.path
		}
	}
	if len(srts) == 1 {
		return srts[0].path
	}
	return ""
}
