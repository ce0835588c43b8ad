package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"beatcut/internal/config"
	"beatcut/internal/subtitle"
	"beatcut/internal/whisper"
)

// PrepareSubtitles produces the subtitle file the burn stage will render and
// returns its path. The source is resolved in priority order: an explicitly
// prepared file, a cached SRT at the expected path, an imported external SRT,
// and finally whisper transcription. Freshly transcribed audio with word
// timestamps takes the word-exact path; everything else goes through
// proportional redistribution.
func (p *Pipeline) PrepareSubtitles(ctx context.Context, cfg *config.Config) (string, error) {
	// An invalid policy is a caller error; reject it before any expensive
	// work runs.
	if _, err := subtitle.ParsePolicy(string(cfg.SplitPolicy)); err != nil {
		return "", err
	}

	if cfg.PreparedSRTPath != "" {
		if !fileExists(cfg.PreparedSRTPath) {
			return "", fmt.Errorf("prepared subtitle %q: %w", cfg.PreparedSRTPath, os.ErrNotExist)
		}
		slog.Info("using prepared subtitles", "path", cfg.PreparedSRTPath)
		return cfg.PreparedSRTPath, nil
	}

	buffer := p.GapBuffer
	if buffer <= 0 {
		buffer = subtitle.DefaultGapBuffer
	}

	var segments []subtitle.Segment
	switch {
	case fileExists(cfg.SRTPath):
		slog.Info("reusing existing subtitles", "path", cfg.SRTPath)

	case cfg.SRTSourcePath != "":
		if !fileExists(cfg.SRTSourcePath) {
			return "", fmt.Errorf("subtitle source %q: %w", cfg.SRTSourcePath, os.ErrNotExist)
		}
		if err := os.MkdirAll(filepath.Dir(cfg.SRTPath), 0755); err != nil {
			return "", err
		}
		if err := copyFile(cfg.SRTSourcePath, cfg.SRTPath); err != nil {
			return "", fmt.Errorf("import subtitles: %w", err)
		}
		slog.Info("imported subtitles", "from", cfg.SRTSourcePath, "to", cfg.SRTPath)

	default:
		var err error
		segments, err = p.transcribe(ctx, cfg)
		if err != nil {
			return "", err
		}
	}

	// Word timestamps from a fresh transcription beat proportional
	// estimation; use them directly when the policy wants word cues.
	if cfg.SplitPolicy == subtitle.PolicyWord && hasWords(segments) {
		cues := subtitle.WordCues(subtitle.Words(segments), buffer)
		if cfg.ClampWordCues {
			cues = subtitle.ClampGaps(cues, buffer)
		}
		out := processedPath(cfg)
		if err := writeCues(out, cues); err != nil {
			return "", err
		}
		slog.Info("built word-exact subtitles", "cues", len(cues), "path", out)
		return out, nil
	}

	cues, err := subtitle.ReadFile(cfg.SRTPath)
	if err != nil {
		return "", fmt.Errorf("read subtitles: %w", err)
	}
	if len(cues) == 0 {
		return "", fmt.Errorf("no usable cues in %s", cfg.SRTPath)
	}

	if cfg.SplitPolicy == subtitle.PolicyNone {
		cues = subtitle.ClampGaps(cues, buffer)
		if err := subtitle.WriteFile(cfg.SRTPath, cues); err != nil {
			return "", err
		}
		return cfg.SRTPath, nil
	}

	cues = subtitle.Redistribute(cues, cfg.SplitPolicy)
	cues = subtitle.ClampGaps(cues, buffer)
	out := processedPath(cfg)
	if err := writeCues(out, cues); err != nil {
		return "", err
	}
	slog.Info("processed subtitles", "policy", cfg.SplitPolicy, "cues", len(cues), "path", out)
	return out, nil
}

// transcribe runs whisper and writes the segment-level SRT to cfg.SRTPath.
// Segments are returned so the caller can use word timestamps directly.
func (p *Pipeline) transcribe(ctx context.Context, cfg *config.Config) ([]subtitle.Segment, error) {
	outputDir := filepath.Dir(cfg.SRTPath)
	segments, err := p.Transcriber.Transcribe(ctx, cfg.AudioPath, cfg.WhisperModel, cfg.Language, outputDir)
	if err != nil {
		return nil, err
	}

	cues := subtitle.SegmentCues(segments)
	if len(cues) > 0 {
		if err := subtitle.WriteFile(cfg.SRTPath, cues); err != nil {
			return nil, err
		}
		return segments, nil
	}

	// No usable segments in the JSON. Whisper may still have produced an
	// SRT under its own naming; adopt it before giving up.
	if found := whisper.FindGeneratedSRT(cfg.AudioPath, outputDir); found != "" {
		if found != cfg.SRTPath {
			if err := copyFile(found, cfg.SRTPath); err != nil {
				return nil, err
			}
		}
		slog.Warn("adopted whisper-generated subtitle file", "path", found)
		return nil, nil
	}
	return nil, whisper.ErrNoTranscript
}

// processedPath is where normalized subtitles for the configured policy land.
func processedPath(cfg *config.Config) string {
	stem := strings.TrimSuffix(filepath.Base(cfg.SRTPath), filepath.Ext(cfg.SRTPath))
	return filepath.Join(cfg.TempDir, "subtitles", fmt.Sprintf("%s.%s.srt", stem, cfg.SplitPolicy))
}

func writeCues(path string, cues []subtitle.Cue) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return subtitle.WriteFile(path, cues)
}

func hasWords(segments []subtitle.Segment) bool {
	for _, s := range segments {
		if len(s.Words) > 0 {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
