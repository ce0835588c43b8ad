// Package pipeline runs the staged video generation: subtitle preparation,
// beat analysis, beat-aligned cutting, concatenation with the audio track,
// and subtitle burn-in. Progress is reported as Events on a caller-owned
// channel.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"beatcut/internal/beat"
	"beatcut/internal/config"
	"beatcut/internal/ffmpeg"
	"beatcut/internal/subtitle"
	"beatcut/internal/whisper"
)

// Transcriber produces transcript segments for an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, model, language, outputDir string) ([]subtitle.Segment, error)
}

// BeatDetector derives cut points from an audio file's beat grid.
type BeatDetector interface {
	Detect(ctx context.Context, audioPath string, totalDuration float64, beatsPerCut int) ([]float64, error)
}

// VideoProcessor performs the media operations of the later stages.
type VideoProcessor interface {
	Probe(ctx context.Context, path string) (float64, error)
	Cut(ctx context.Context, spec ffmpeg.CutSpec) error
	Concat(ctx context.Context, segments []string, audioPath string, totalDuration float64, listPath, outputPath string) error
	Burn(ctx context.Context, inputPath, outputPath, srtPath string, style ffmpeg.Style) error
}

// Pipeline executes the generation stages in order. The zero value is not
// usable; construct with New.
type Pipeline struct {
	Transcriber Transcriber
	Beats       BeatDetector
	Video       VideoProcessor
	GapBuffer   int

	events chan<- Event
}

// New returns a Pipeline backed by the external whisper, aubio, and ffmpeg
// tools. events may be nil for callers that do not track progress; the
// channel is never closed by the pipeline.
func New(events chan<- Event) *Pipeline {
	return &Pipeline{
		Transcriber: whisperTranscriber{},
		Beats:       aubioDetector{},
		Video:       ffmpegProcessor{},
		GapBuffer:   subtitle.DefaultGapBuffer,
		events:      events,
	}
}

// emit delivers ev without blocking past cancellation. A consumer that has
// stopped draining only stalls the pipeline until its context is cancelled.
func (p *Pipeline) emit(ctx context.Context, ev Event) {
	if p.events == nil {
		return
	}
	select {
	case p.events <- ev:
	case <-ctx.Done():
	}
}

func (p *Pipeline) stageStart(ctx context.Context, s Stage, msg string) {
	p.emit(ctx, Event{Kind: KindStageStart, Stage: s, Message: msg, Percent: startPercent(s)})
}

func (p *Pipeline) stageDone(ctx context.Context, s Stage, msg string) {
	p.emit(ctx, Event{Kind: KindStageDone, Stage: s, Message: msg, Percent: donePercent(s)})
}

// Run executes every stage against cfg. The first failing stage aborts the
// run; the returned error is wrapped with the stage name.
func (p *Pipeline) Run(ctx context.Context, cfg *config.Config) error {
	if cfg.AudioPath == "" {
		return fmt.Errorf("%w: audio path", config.ErrMissing)
	}
	if len(cfg.VideoClips) == 0 {
		return fmt.Errorf("%w: video clips", config.ErrMissing)
	}
	if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
		return err
	}
	for _, out := range []string{cfg.OutputNoSub, cfg.FinalOutput} {
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return err
		}
	}

	total := cfg.TotalDuration
	if total <= 0 {
		probed, err := p.Video.Probe(ctx, cfg.AudioPath)
		if err != nil {
			return fmt.Errorf("probe audio duration: %w", err)
		}
		total = probed
		slog.Info("probed audio duration", "seconds", total)
	}

	p.stageStart(ctx, StageSRT, "preparing subtitles")
	srtPath, err := p.PrepareSubtitles(ctx, cfg)
	if err != nil {
		return fmt.Errorf("srt stage: %w", err)
	}
	p.stageDone(ctx, StageSRT, "subtitles ready")

	p.stageStart(ctx, StageBeat, "analyzing beats")
	cuts, err := p.Beats.Detect(ctx, cfg.AudioPath, total, cfg.BeatsPerCut)
	if err != nil {
		return fmt.Errorf("beat stage: %w", err)
	}
	p.stageDone(ctx, StageBeat, "beat analysis complete")

	durations := segmentDurations(cuts)
	p.emit(ctx, Event{
		Kind:    KindStageStart,
		Stage:   StageCut,
		Message: "cutting segments",
		Percent: startPercent(StageCut),
		Total:   len(durations),
	})
	segments, err := p.cutSegments(ctx, cfg, durations)
	if err != nil {
		return fmt.Errorf("cut stage: %w", err)
	}
	p.stageDone(ctx, StageCut, "segments rendered")

	p.stageStart(ctx, StageConcat, "concatenating segments")
	listPath := filepath.Join(cfg.TempDir, "concat_list.txt")
	if err := p.Video.Concat(ctx, segments, cfg.AudioPath, total, listPath, cfg.OutputNoSub); err != nil {
		return fmt.Errorf("concat stage: %w", err)
	}
	p.stageDone(ctx, StageConcat, "video assembled")

	p.stageStart(ctx, StageBurn, "burning subtitles")
	if err := p.burn(ctx, cfg, srtPath); err != nil {
		return fmt.Errorf("burn stage: %w", err)
	}
	p.stageDone(ctx, StageBurn, "subtitles burned")

	slog.Info("generation complete", "output", cfg.FinalOutput)
	return nil
}

// segmentDurations turns the cut-point list into the renderable interval
// durations, dropping empty intervals from repeated cut points.
func segmentDurations(cuts []float64) []float64 {
	var durations []float64
	for i := 0; i+1 < len(cuts); i++ {
		if d := cuts[i+1] - cuts[i]; d > 0 {
			durations = append(durations, d)
		}
	}
	return durations
}

// cutSegments renders one segment per interval, cycling through the
// available source clips in order.
func (p *Pipeline) cutSegments(ctx context.Context, cfg *config.Config, durations []float64) ([]string, error) {
	total := len(durations)
	if total == 0 {
		return nil, fmt.Errorf("no cut intervals to render")
	}

	segments := make([]string, 0, total)
	for i, duration := range durations {
		out := filepath.Join(cfg.TempDir, fmt.Sprintf("seg_%03d.mp4", i))
		spec := ffmpeg.CutSpec{
			Source:   cfg.VideoClips[i%len(cfg.VideoClips)],
			Duration: duration,
			Width:    cfg.VideoWidth,
			Height:   cfg.VideoHeight,
			FPS:      cfg.FPS,
			Output:   out,
		}
		if err := p.Video.Cut(ctx, spec); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		segments = append(segments, out)
		p.emit(ctx, Event{
			Kind:    KindStageProgress,
			Stage:   StageCut,
			Message: fmt.Sprintf("segment %d/%d", i+1, total),
			Percent: cutPercent(i+1, total),
			Done:    i + 1,
			Total:   total,
		})
	}
	return segments, nil
}

func (p *Pipeline) burn(ctx context.Context, cfg *config.Config, srtPath string) error {
	fontSize := cfg.FontSize
	if cfg.AutoFitFontSize {
		cues, err := subtitle.ReadFile(srtPath)
		if err != nil {
			return err
		}
		fontSize = subtitle.FitFontSize(cues, cfg.VideoWidth, cfg.FontSize)
		if fontSize != cfg.FontSize {
			slog.Info("fitted font size", "requested", cfg.FontSize, "fitted", fontSize)
		}
	}
	style := ffmpeg.Style{
		Width:        cfg.VideoWidth,
		Height:       cfg.VideoHeight,
		FontName:     cfg.FontName,
		FontSize:     fontSize,
		FontColor:    cfg.FontColor,
		OutlineColor: cfg.OutlineColor,
	}
	return p.Video.Burn(ctx, cfg.OutputNoSub, cfg.FinalOutput, srtPath, style)
}

type whisperTranscriber struct{}

func (whisperTranscriber) Transcribe(ctx context.Context, audioPath, model, language, outputDir string) ([]subtitle.Segment, error) {
	return whisper.Transcribe(ctx, audioPath, model, language, outputDir)
}

type aubioDetector struct{}

func (aubioDetector) Detect(ctx context.Context, audioPath string, totalDuration float64, beatsPerCut int) ([]float64, error) {
	return beat.Detect(ctx, audioPath, totalDuration, beatsPerCut)
}

type ffmpegProcessor struct{}

func (ffmpegProcessor) Probe(ctx context.Context, path string) (float64, error) {
	return ffmpeg.ProbeDuration(ctx, path)
}

func (ffmpegProcessor) Cut(ctx context.Context, spec ffmpeg.CutSpec) error {
	return ffmpeg.Cut(ctx, spec)
}

func (ffmpegProcessor) Concat(ctx context.Context, segments []string, audioPath string, totalDuration float64, listPath, outputPath string) error {
	return ffmpeg.Concat(ctx, segments, audioPath, totalDuration, listPath, outputPath)
}

func (ffmpegProcessor) Burn(ctx context.Context, inputPath, outputPath, srtPath string, style ffmpeg.Style) error {
	return ffmpeg.Burn(ctx, inputPath, outputPath, srtPath, style)
}
