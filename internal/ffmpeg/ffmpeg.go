// Package ffmpeg wraps the external ffmpeg/ffprobe binaries for the video
// operations of the generation pipeline: probing, beat-aligned cutting,
// concatenation with audio mux, and subtitle burn-in.
package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Available returns true if ffmpeg is on the PATH.
func Available() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// probeOutput mirrors ffprobe JSON structure.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration uses ffprobe to read a media file's duration in seconds.
func ProbeDuration(ctx context.Context, path string) (float64, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return 0, fmt.Errorf("ffprobe not found: %w", err)
	}

	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("ffprobe JSON parse error: %w", err)
	}
	dur, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %q: %w", probe.Format.Duration, err)
	}
	return dur, nil
}

// CutSpec describes one beat-aligned segment rendered from a source clip.
type CutSpec struct {
	Source   string
	Start    float64 // offset into the source clip, seconds
	Duration float64 // seconds
	Width    int
	Height   int
	FPS      int
	Output   string
}

// Cut renders spec.Output: the source clip scaled and padded to the target
// geometry at the target frame rate, video stream only.
func Cut(ctx context.Context, spec CutSpec) error {
	scale := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1",
		spec.Width, spec.Height, spec.Width, spec.Height,
	)

	args := []string{"-y"}
	if spec.Start > 0 {
		args = append(args, "-ss", formatSeconds(spec.Start))
	}
	args = append(args,
		"-i", spec.Source,
		"-t", formatSeconds(spec.Duration),
		"-vf", scale,
		"-r", strconv.Itoa(spec.FPS),
		"-an",
		"-c:v", "libx264", "-preset", "fast",
		spec.Output,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg cut failed: %w\n%s", err, string(out))
	}
	return nil
}

// Concat joins segment files in order, muxes in the audio track, and trims
// the result to totalDuration. The concat list file is written to listPath.
func Concat(ctx context.Context, segments []string, audioPath string, totalDuration float64, listPath, outputPath string) error {
	var b strings.Builder
	for _, seg := range segments {
		fmt.Fprintf(&b, "file '%s'\n", seg)
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	cmd := exec.CommandContext(ctx,
		"ffmpeg", "-y",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-i", audioPath,
		"-c:v", "libx264", "-c:a", "aac", "-b:a", "192k",
		"-t", formatSeconds(totalDuration),
		outputPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w\n%s", err, string(out))
	}
	return nil
}

// Style configures burned-in subtitle rendering. Colors use the ASS
// &HAABBGGRR notation.
type Style struct {
	Width        int
	Height       int
	FontName     string
	FontSize     int
	FontColor    string
	OutlineColor string
}

// Burn renders the SRT file into the video. The subtitles filter needs
// forward slashes and escaped colons in the subtitle path.
func Burn(ctx context.Context, inputPath, outputPath, srtPath string, style Style) error {
	escaped := strings.ReplaceAll(srtPath, `\`, "/")
	escaped = strings.ReplaceAll(escaped, ":", `\:`)

	filter := fmt.Sprintf(
		"subtitles='%s':original_size=%dx%d:"+
			"force_style='FontName=%s,FontSize=%d,PrimaryColour=%s,OutlineColour=%s,"+
			"Outline=0,Shadow=0,Alignment=10,WrapStyle=2'",
		escaped, style.Width, style.Height,
		style.FontName, style.FontSize, style.FontColor, style.OutlineColor,
	)

	cmd := exec.CommandContext(ctx,
		"ffmpeg", "-y",
		"-i", inputPath,
		"-vf", filter,
		"-c:a", "copy",
		outputPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg burn failed: %w\n%s", err, string(out))
	}
	return nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
