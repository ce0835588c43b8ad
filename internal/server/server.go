// Package server exposes the generation pipeline over HTTP: video upload,
// run control, SSE progress streaming, and result download.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"beatcut/internal/config"
	"beatcut/internal/pipeline"
	"beatcut/internal/subtitle"
	"beatcut/internal/task"
)

// Server routes API requests to the task manager. root is the directory
// uploads and relative request paths resolve against.
type Server struct {
	root      string
	tasks     *task.Manager
	heartbeat time.Duration
}

// New builds a Server over the given working root and task manager.
func New(root string, tasks *task.Manager) *Server {
	return &Server{
		root:      root,
		tasks:     tasks,
		heartbeat: 30 * time.Second,
	}
}

// Router assembles the gin engine with all API routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), cors())

	api := r.Group("/api")
	api.POST("/upload", s.handleUpload)
	api.POST("/generate", rateLimit(), s.handleGenerate)
	api.GET("/progress/:id", s.handleProgress)
	api.GET("/download/:id", s.handleDownload)
	return r
}

// GenerateRequest is the JSON body of POST /api/generate. Relative paths
// resolve against the server root.
type GenerateRequest struct {
	VideoPaths    []string `json:"video_paths"`
	AudioPath     string   `json:"audio_path"`
	SRTPath       string   `json:"srt_path"`
	WhisperModel  string   `json:"whisper_model"`
	Language      string   `json:"language"`
	BeatsPerCut   int      `json:"beats_per_cut"`
	TotalDuration float64  `json:"total_duration"`
	VideoWidth    int      `json:"video_width"`
	VideoHeight   int      `json:"video_height"`
	FPS           int      `json:"fps"`
	SplitMode     string   `json:"split_mode"`
	FontSize      int      `json:"font_size"`
	TempPath      string   `json:"temp_path"`
	OutputPath    string   `json:"output_path"`
}

func (s *Server) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.root, path)
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.VideoPaths) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video_paths is required"})
		return
	}
	if req.AudioPath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio_path is required"})
		return
	}
	if req.Language == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "language is required"})
		return
	}

	splitMode := req.SplitMode
	if splitMode == "" {
		splitMode = string(subtitle.PolicyWord)
	}
	policy, err := subtitle.ParsePolicy(splitMode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	audioPath := s.resolve(req.AudioPath)
	if _, err := os.Stat(audioPath); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("audio file not found: %s", req.AudioPath)})
		return
	}
	clips := make([]string, 0, len(req.VideoPaths))
	for _, p := range req.VideoPaths {
		resolved := s.resolve(p)
		if _, err := os.Stat(resolved); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("video file not found: %s", p)})
			return
		}
		clips = append(clips, resolved)
	}

	cfg := &config.Config{
		ProjectDir:      s.root,
		AudioPath:       audioPath,
		SRTPath:         s.resolve(req.SRTPath),
		TotalDuration:   req.TotalDuration,
		BeatsPerCut:     defaultInt(req.BeatsPerCut, 2),
		TempDir:         s.resolve(defaultStr(req.TempPath, filepath.Join("output", "temp"))),
		OutputNoSub:     s.resolve(filepath.Join("output", "no_sub.mp4")),
		FinalOutput:     s.resolve(defaultStr(req.OutputPath, filepath.Join("output", "final.mp4"))),
		VideoClips:      clips,
		VideoWidth:      defaultInt(req.VideoWidth, 1080),
		VideoHeight:     defaultInt(req.VideoHeight, 1920),
		FPS:             defaultInt(req.FPS, 30),
		FontName:        "Arial",
		FontSize:        defaultInt(req.FontSize, 18),
		FontColor:       "&H00FFFFFF",
		OutlineColor:    "&H00000000",
		AutoFitFontSize: true,
		WhisperModel:    defaultStr(req.WhisperModel, "small"),
		Language:        req.Language,
		SplitPolicy:     policy,
	}
	if cfg.SRTPath == "" {
		stem := audioStem(audioPath)
		cfg.SRTPath = filepath.Join(s.root, "raw_materials", "lyric", stem+".srt")
	}

	// Each run starts clean: stale segments and outputs from a previous
	// run must not leak into this one.
	os.RemoveAll(cfg.TempDir)
	os.Remove(cfg.OutputNoSub)
	os.Remove(cfg.FinalOutput)

	t := s.tasks.Start(cfg)
	slog.Info("generation started", "task_id", t.ID)
	c.JSON(http.StatusOK, gin.H{"task_id": t.ID})
}

// handleUpload receives the raw materials for a run: video clips, an
// optional audio track, and an optional subtitle file. Each lands in its
// raw_materials/ subdirectory; the returned server paths feed the
// subsequent generate request.
func (s *Server) handleUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
		return
	}
	videos := form.File["videos"]
	audio := firstFile(form.File["audio"])
	sub := firstFile(form.File["subtitle"])
	if len(videos) == 0 && audio == nil && sub == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	// The uploaded-videos dir is cleared so each upload is a fresh set.
	videoDir := filepath.Join(s.root, "raw_materials", "videos", "uploaded")
	os.RemoveAll(videoDir)
	if err := os.MkdirAll(videoDir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"video_paths": []string{}, "audio_path": nil, "srt_path": nil}

	var videoPaths []string
	for _, fh := range videos {
		dst := filepath.Join(videoDir, filepath.Base(fh.Filename))
		if err := c.SaveUploadedFile(fh, dst); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		videoPaths = append(videoPaths, dst)
	}
	if len(videoPaths) > 0 {
		resp["video_paths"] = videoPaths
	}

	if audio != nil {
		dst := filepath.Join(s.root, "raw_materials", "song", filepath.Base(audio.Filename))
		if err := saveTo(c, audio, dst); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp["audio_path"] = dst
	}
	if sub != nil {
		dst := filepath.Join(s.root, "raw_materials", "lyric", filepath.Base(sub.Filename))
		if err := saveTo(c, sub, dst); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp["srt_path"] = dst
	}
	c.JSON(http.StatusOK, resp)
}

func firstFile(fhs []*multipart.FileHeader) *multipart.FileHeader {
	if len(fhs) == 0 {
		return nil
	}
	return fhs[0]
}

func saveTo(c *gin.Context, fh *multipart.FileHeader, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return c.SaveUploadedFile(fh, dst)
}

// handleProgress streams the task's events as SSE. Comment heartbeats keep
// idle connections alive; a synthetic end event follows the stream close.
func (s *Server) handleProgress(c *gin.Context) {
	t := s.tasks.Get(c.Param("id"))
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown task"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-t.Events:
			if !ok {
				writeSSE(c, pipeline.Event{Kind: pipeline.KindStageDone, Stage: pipeline.StageEnd, Percent: 100})
				return
			}
			writeSSE(c, ev)
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func writeSSE(c *gin.Context, ev pipeline.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}

func (s *Server) handleDownload(c *gin.Context) {
	t := s.tasks.Get(c.Param("id"))
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown task"})
		return
	}
	status, msg := t.Status()
	switch status {
	case task.StatusCompleted:
	case task.StatusError:
		c.JSON(http.StatusConflict, gin.H{"error": "generation failed: " + msg})
		return
	default:
		c.JSON(http.StatusConflict, gin.H{"error": "generation still in progress"})
		return
	}
	if _, err := os.Stat(t.OutputPath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "output file missing"})
		return
	}
	c.FileAttachment(t.OutputPath, "final_output.mp4")
}

func audioStem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
