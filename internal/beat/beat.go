// Package beat wraps the external beat tracker and turns its beat grid into
// video cut points.
package beat

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Detect runs `aubio beat` over audioPath and derives cut points: every
// beatsPerCut-th beat, closed with totalDuration as the final boundary.
func Detect(ctx context.Context, audioPath string, totalDuration float64, beatsPerCut int) ([]float64, error) {
	slog.Info("analyzing beats", "file", filepath.Base(audioPath), "beats_per_cut", beatsPerCut)

	cmd := exec.CommandContext(ctx, "aubio", "beat", audioPath)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("aubio beat failed: %w", err)
	}

	beats, err := parseBeatTimes(bytes.NewReader(out))
	if err != nil {
		return nil, err
	}

	cuts := SelectCuts(beats, totalDuration, beatsPerCut)
	slog.Info("beat analysis complete", "beats", len(beats), "cuts", len(cuts)-1)
	return cuts, nil
}

// parseBeatTimes reads one beat timestamp (seconds) per line, tolerating
// blank lines and non-numeric chatter on stdout.
func parseBeatTimes(r io.Reader) ([]float64, error) {
	var beats []float64
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		beats = append(beats, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read beat output: %w", err)
	}
	return beats, nil
}

// SelectCuts picks every beatsPerCut-th beat as a cut point and appends
// totalDuration when the last cut falls short of it. A track with too few
// beats degrades to a single full-length segment instead of an empty list.
func SelectCuts(beats []float64, totalDuration float64, beatsPerCut int) []float64 {
	if beatsPerCut < 1 {
		beatsPerCut = 1
	}
	var cuts []float64
	for i := 0; i < len(beats)-beatsPerCut; i += beatsPerCut {
		cuts = append(cuts, beats[i])
	}
	if len(cuts) == 0 {
		cuts = []float64{0}
	}
	if cuts[len(cuts)-1] < totalDuration {
		cuts = append(cuts, totalDuration)
	}
	return cuts
}
