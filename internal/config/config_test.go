package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"beatcut/internal/subtitle"
)

// newProject builds a minimal project directory with an audio file and
// optional .env content.
func newProject(t *testing.T, env string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "raw_materials", "song"), 0755); err != nil {
		t.Fatal(err)
	}
	audio := filepath.Join(dir, "raw_materials", "song", "track.mp3")
	if err := os.WriteFile(audio, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}
	content := "AUDIO_PATH=raw_materials/song/track.mp3\nLANGUAGE=en\n" + env
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := newProject(t, "")
	cfg, err := Load(Options{ProjectDir: dir})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Language != "en" {
		t.Errorf("Language = %q", cfg.Language)
	}
	if want := filepath.Join(cfg.ProjectDir, "raw_materials", "lyric", "track.srt"); cfg.SRTPath != want {
		t.Errorf("SRTPath = %q, want %q", cfg.SRTPath, want)
	}
	if cfg.BeatsPerCut != 2 {
		t.Errorf("BeatsPerCut = %d, want 2", cfg.BeatsPerCut)
	}
	if cfg.VideoWidth != 1080 || cfg.VideoHeight != 1920 || cfg.FPS != 30 {
		t.Errorf("geometry = %dx%d@%d", cfg.VideoWidth, cfg.VideoHeight, cfg.FPS)
	}
	if cfg.FontSize != 18 || !cfg.AutoFitFontSize {
		t.Errorf("font = size %d autofit %v", cfg.FontSize, cfg.AutoFitFontSize)
	}
	if cfg.SplitPolicy != subtitle.PolicyWord {
		t.Errorf("SplitPolicy = %q, want word", cfg.SplitPolicy)
	}
	if cfg.ClampWordCues {
		t.Error("ClampWordCues should default to false")
	}
	if cfg.TotalDuration != 0 {
		t.Errorf("TotalDuration = %v, want 0 (probe later)", cfg.TotalDuration)
	}
	if cfg.WhisperModel != "small" {
		t.Errorf("WhisperModel = %q", cfg.WhisperModel)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LANGUAGE=en\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(Options{ProjectDir: dir}); !errors.Is(err, ErrMissing) {
		t.Errorf("missing AUDIO_PATH error = %v, want ErrMissing", err)
	}

	dir = newProject(t, "")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("AUDIO_PATH=raw_materials/song/track.mp3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(Options{ProjectDir: dir}); !errors.Is(err, ErrMissing) {
		t.Errorf("missing LANGUAGE error = %v, want ErrMissing", err)
	}
}

func TestLoadAudioMustExist(t *testing.T) {
	dir := t.TempDir()
	env := "AUDIO_PATH=raw_materials/song/nope.mp3\nLANGUAGE=en\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(Options{ProjectDir: dir}); err == nil {
		t.Error("expected error for nonexistent audio file")
	}
}

func TestLoadEnvironmentWins(t *testing.T) {
	dir := newProject(t, "BEATS_PER_CUT=2\n")
	t.Setenv("BEATS_PER_CUT", "4")
	cfg, err := Load(Options{ProjectDir: dir})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.BeatsPerCut != 4 {
		t.Errorf("BeatsPerCut = %d, want env override 4", cfg.BeatsPerCut)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	for _, env := range []string{
		"BEATS_PER_CUT=two\n",
		"TOTAL_DURATION=long\n",
		"AUTO_FIT_FONT_SIZE=maybe\n",
		"SPLIT_MODE=paragraph\n",
	} {
		dir := newProject(t, env)
		if _, err := Load(Options{ProjectDir: dir}); err == nil {
			t.Errorf("expected error for %q", env)
		}
	}
}

func TestLoadRequireVideos(t *testing.T) {
	dir := newProject(t, "")
	if _, err := Load(Options{ProjectDir: dir, RequireVideos: true}); err == nil {
		t.Fatal("expected error with no video clips")
	}

	videos := filepath.Join(dir, "raw_materials", "videos")
	if err := os.MkdirAll(videos, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"b.mp4", "a.mov", "notes.txt", "c.MKV"} {
		if err := os.WriteFile(filepath.Join(videos, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	cfg, err := Load(Options{ProjectDir: dir, RequireVideos: true})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(cfg.VideoClips) != 3 {
		t.Fatalf("VideoClips = %v, want 3 entries", cfg.VideoClips)
	}
	// Sorted, non-video files excluded, extension match case-insensitive.
	if filepath.Base(cfg.VideoClips[0]) != "a.mov" || filepath.Base(cfg.VideoClips[1]) != "b.mp4" {
		t.Errorf("VideoClips order = %v", cfg.VideoClips)
	}
}

func TestLoadCustomPaths(t *testing.T) {
	dir := newProject(t, "SRT_PATH=custom/subs.srt\nTEMP_DIR=/abs/temp\nSPLIT_MODE=sentence\nCLAMP_WORD_CUES=true\n")
	cfg, err := Load(Options{ProjectDir: dir})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if want := filepath.Join(cfg.ProjectDir, "custom", "subs.srt"); cfg.SRTPath != want {
		t.Errorf("SRTPath = %q, want project-relative %q", cfg.SRTPath, want)
	}
	if cfg.TempDir != filepath.Clean("/abs/temp") {
		t.Errorf("TempDir = %q, want absolute path kept", cfg.TempDir)
	}
	if cfg.SplitPolicy != subtitle.PolicySentence {
		t.Errorf("SplitPolicy = %q", cfg.SplitPolicy)
	}
	if !cfg.ClampWordCues {
		t.Error("ClampWordCues = false, want true")
	}
}
