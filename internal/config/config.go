// Package config resolves the generation parameters for a project from its
// .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"beatcut/internal/subtitle"
)

// ErrMissing marks a required setting that is absent or unusable. It is
// fatal before any pipeline stage runs.
var ErrMissing = errors.New("missing required setting")

// Config is the resolved, immutable parameter bag consumed by the pipeline.
type Config struct {
	ProjectDir string

	AudioPath       string
	SRTPath         string // expected subtitle location; reused when present
	SRTSourcePath   string // optional external subtitle to import
	PreparedSRTPath string // already-normalized subtitle, bypasses preparation

	TotalDuration float64 // seconds; 0 means probe the audio
	BeatsPerCut   int

	TempDir     string
	OutputNoSub string
	FinalOutput string

	VideoClips  []string
	VideoWidth  int
	VideoHeight int
	FPS         int

	FontName        string
	FontSize        int
	FontColor       string
	OutlineColor    string
	AutoFitFontSize bool

	WhisperModel string
	Language     string

	SplitPolicy   subtitle.Policy
	ClampWordCues bool
}

// Options controls config resolution.
type Options struct {
	ProjectDir string
	// RequireVideos demands at least one clip in VIDEO_DIR; subtitle-only
	// runs don't need any.
	RequireVideos bool
}

var videoExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true, ".webm": true,
}

// Load resolves the project configuration. Values come from the project's
// .env file; process environment variables take precedence. Relative paths
// resolve against the project directory.
func Load(opts Options) (*Config, error) {
	root := opts.ProjectDir
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fileEnv, err := godotenv.Read(filepath.Join(root, ".env"))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	res := resolver{root: root, env: fileEnv}

	audio := res.get("AUDIO_PATH")
	if audio == "" {
		return nil, fmt.Errorf("%w: AUDIO_PATH", ErrMissing)
	}
	audioPath := res.resolve(audio)
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("AUDIO_PATH %q: %w", audioPath, err)
	}

	language := res.get("LANGUAGE")
	if language == "" {
		return nil, fmt.Errorf("%w: LANGUAGE", ErrMissing)
	}

	srtPath := res.get("SRT_PATH")
	if srtPath == "" {
		stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
		srtPath = filepath.Join(root, "raw_materials", "lyric", stem+".srt")
	} else {
		srtPath = res.resolve(srtPath)
	}

	srtSource := res.get("SRT_SOURCE_PATH")
	if srtSource != "" {
		srtSource = res.resolve(srtSource)
	}

	totalDuration, err := res.getFloat("TOTAL_DURATION", 0)
	if err != nil {
		return nil, err
	}
	beatsPerCut, err := res.getInt("BEATS_PER_CUT", 2)
	if err != nil {
		return nil, err
	}

	videoDir := res.resolve(res.getDefault("VIDEO_DIR", filepath.Join("raw_materials", "videos")))
	clips, err := scanClips(videoDir)
	if err != nil && opts.RequireVideos {
		return nil, fmt.Errorf("VIDEO_DIR %q: %w", videoDir, err)
	}
	if opts.RequireVideos && len(clips) == 0 {
		return nil, fmt.Errorf("%w: no video clips in %s", ErrMissing, videoDir)
	}

	width, err := res.getInt("VIDEO_WIDTH", 1080)
	if err != nil {
		return nil, err
	}
	height, err := res.getInt("VIDEO_HEIGHT", 1920)
	if err != nil {
		return nil, err
	}
	fps, err := res.getInt("FPS", 30)
	if err != nil {
		return nil, err
	}
	fontSize, err := res.getInt("FONT_SIZE", 18)
	if err != nil {
		return nil, err
	}
	autoFit, err := res.getBool("AUTO_FIT_FONT_SIZE", true)
	if err != nil {
		return nil, err
	}
	clampWords, err := res.getBool("CLAMP_WORD_CUES", false)
	if err != nil {
		return nil, err
	}

	policy, err := subtitle.ParsePolicy(res.getDefault("SPLIT_MODE", "word"))
	if err != nil {
		return nil, err
	}

	return &Config{
		ProjectDir:      root,
		AudioPath:       audioPath,
		SRTPath:         srtPath,
		SRTSourcePath:   srtSource,
		TotalDuration:   totalDuration,
		BeatsPerCut:     beatsPerCut,
		TempDir:         res.resolve(res.getDefault("TEMP_DIR", filepath.Join("output", "temp"))),
		OutputNoSub:     res.resolve(res.getDefault("OUTPUT_NO_SUB", filepath.Join("output", "no_sub.mp4"))),
		FinalOutput:     res.resolve(res.getDefault("FINAL_OUTPUT", filepath.Join("output", "final.mp4"))),
		VideoClips:      clips,
		VideoWidth:      width,
		VideoHeight:     height,
		FPS:             fps,
		FontName:        res.getDefault("FONT_NAME", "Arial"),
		FontSize:        fontSize,
		FontColor:       res.getDefault("FONT_COLOR", "&H00FFFFFF"),
		OutlineColor:    res.getDefault("OUTLINE_COLOR", "&H00000000"),
		AutoFitFontSize: autoFit,
		WhisperModel:    res.getDefault("WHISPER_MODEL", "small"),
		Language:        language,
		SplitPolicy:     policy,
		ClampWordCues:   clampWords,
	}, nil
}

func scanClips(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var clips []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if videoExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			clips = append(clips, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(clips)
	return clips, nil
}

// resolver layers the process environment over the .env file.
type resolver struct {
	root string
	env  map[string]string
}

func (r resolver) get(key string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return r.env[key]
}

func (r resolver) getDefault(key, def string) string {
	if v := r.get(key); v != "" {
		return v
	}
	return def
}

func (r resolver) getInt(key string, def int) (int, error) {
	v := r.get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func (r resolver) getFloat(key string, def float64) (float64, error) {
	v := r.get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func (r resolver) getBool(key string, def bool) (bool, error) {
	v := r.get(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func (r resolver) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(r.root, path)
}
