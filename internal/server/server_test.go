package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"beatcut/internal/config"
	"beatcut/internal/pipeline"
	"beatcut/internal/task"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, run task.RunFunc) (*Server, *gin.Engine, string) {
	t.Helper()
	root := t.TempDir()
	if run == nil {
		run = func(ctx context.Context, cfg *config.Config, events chan<- pipeline.Event) error {
			return nil
		}
	}
	s := New(root, task.NewManager(run))
	return s, s.Router(), root
}

func seedMedia(t *testing.T, root string) {
	t.Helper()
	for _, p := range []string{
		filepath.Join(root, "song.mp3"),
		filepath.Join(root, "clip.mp4"),
	} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func postGenerate(t *testing.T, r *gin.Engine, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validBody() map[string]any {
	return map[string]any{
		"video_paths": []string{"clip.mp4"},
		"audio_path":  "song.mp3",
		"language":    "en",
	}
}

func TestGenerateValidation(t *testing.T) {
	_, r, root := newTestServer(t, nil)
	seedMedia(t, root)

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"no videos", func(b map[string]any) { b["video_paths"] = []string{} }},
		{"no audio", func(b map[string]any) { delete(b, "audio_path") }},
		{"no language", func(b map[string]any) { delete(b, "language") }},
		{"bad split mode", func(b map[string]any) { b["split_mode"] = "paragraph" }},
		{"missing audio file", func(b map[string]any) { b["audio_path"] = "nope.mp3" }},
		{"missing video file", func(b map[string]any) { b["video_paths"] = []string{"nope.mp4"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validBody()
			tt.mutate(body)
			if w := postGenerate(t, r, body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestGenerateStartsTask(t *testing.T) {
	var got *config.Config
	started := make(chan struct{})
	s, r, root := newTestServer(t, func(ctx context.Context, cfg *config.Config, events chan<- pipeline.Event) error {
		got = cfg
		close(started)
		return nil
	})
	seedMedia(t, root)

	w := postGenerate(t, r, validBody())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TaskID == "" {
		t.Fatal("empty task_id")
	}
	if s.tasks.Get(resp.TaskID) == nil {
		t.Error("task not retrievable by returned id")
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("run never started")
	}
	if got.Language != "en" || got.BeatsPerCut != 2 || got.VideoWidth != 1080 {
		t.Errorf("config defaults not applied: %+v", got)
	}
	if got.AudioPath != filepath.Join(root, "song.mp3") {
		t.Errorf("AudioPath = %q, want resolved against root", got.AudioPath)
	}
}

func TestProgressUnknownTask(t *testing.T) {
	_, r, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/progress/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestProgressStreamsEvents(t *testing.T) {
	s, r, root := newTestServer(t, func(ctx context.Context, cfg *config.Config, events chan<- pipeline.Event) error {
		events <- pipeline.Event{Kind: pipeline.KindStageStart, Stage: pipeline.StageSRT, Percent: 0}
		events <- pipeline.Event{Kind: pipeline.KindStageDone, Stage: pipeline.StageSRT, Percent: 20}
		return nil
	})
	seedMedia(t, root)

	w := postGenerate(t, r, validBody())
	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	// Let the run finish so the event channel is closed before streaming.
	tk := s.tasks.Get(resp.TaskID)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if status, _ := tk.Status(); status != task.StatusProcessing {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/progress/"+resp.TaskID, nil)
	sw := httptest.NewRecorder()
	r.ServeHTTP(sw, req)

	if ct := sw.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := sw.Body.String()
	for _, want := range []string{
		`"stage":"srt"`,
		`"stage":"done"`,
		`"stage":"end"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %s:\n%s", want, body)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "}") || !strings.Contains(body, "data: ") {
		t.Errorf("not SSE-framed:\n%s", body)
	}
	// The end marker is the last frame.
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	if last := frames[len(frames)-1]; !strings.Contains(last, `"stage":"end"`) {
		t.Errorf("last frame = %q, want end marker", last)
	}
}

func TestProgressHeartbeat(t *testing.T) {
	block := make(chan struct{})
	s, r, root := newTestServer(t, func(ctx context.Context, cfg *config.Config, events chan<- pipeline.Event) error {
		<-block
		return nil
	})
	defer close(block)
	s.heartbeat = 10 * time.Millisecond
	seedMedia(t, root)

	w := postGenerate(t, r, validBody())
	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/progress/"+resp.TaskID, nil).WithContext(ctx)
	sw := httptest.NewRecorder()
	r.ServeHTTP(sw, req)

	if !strings.Contains(sw.Body.String(), ": heartbeat") {
		t.Errorf("no heartbeat in idle stream:\n%s", sw.Body.String())
	}
}

func TestDownload(t *testing.T) {
	finished := make(chan struct{})
	s, r, root := newTestServer(t, func(ctx context.Context, cfg *config.Config, events chan<- pipeline.Event) error {
		defer close(finished)
		if err := os.MkdirAll(filepath.Dir(cfg.FinalOutput), 0755); err != nil {
			return err
		}
		return os.WriteFile(cfg.FinalOutput, []byte("final video"), 0644)
	})
	seedMedia(t, root)

	get := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/download/"+id, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := get("nope"); w.Code != http.StatusNotFound {
		t.Errorf("unknown task status = %d, want 404", w.Code)
	}

	w := postGenerate(t, r, validBody())
	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	<-finished

	tk := s.tasks.Get(resp.TaskID)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if status, _ := tk.Status(); status == task.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("task never completed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	dw := get(resp.TaskID)
	if dw.Code != http.StatusOK {
		t.Fatalf("download status = %d: %s", dw.Code, dw.Body.String())
	}
	if dw.Body.String() != "final video" {
		t.Errorf("download body = %q", dw.Body.String())
	}
	if cd := dw.Header().Get("Content-Disposition"); !strings.Contains(cd, "final_output.mp4") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestDownloadInProgress(t *testing.T) {
	block := make(chan struct{})
	_, r, root := newTestServer(t, func(ctx context.Context, cfg *config.Config, events chan<- pipeline.Event) error {
		<-block
		return nil
	})
	defer close(block)
	seedMedia(t, root)

	w := postGenerate(t, r, validBody())
	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/download/"+resp.TaskID, nil)
	dw := httptest.NewRecorder()
	r.ServeHTTP(dw, req)
	if dw.Code != http.StatusConflict {
		t.Errorf("in-progress download status = %d, want 409", dw.Code)
	}
}

func TestUploadVideos(t *testing.T) {
	_, r, root := newTestServer(t, nil)

	var buf bytes.Buffer
	ct := newMultipart(t, &buf, map[string][]file{
		"videos": {{"one.mp4", "aaa"}, {"two.mp4", "bbb"}},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		VideoPaths []string `json:"video_paths"`
		AudioPath  *string  `json:"audio_path"`
		SRTPath    *string  `json:"srt_path"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.VideoPaths) != 2 {
		t.Fatalf("video_paths = %v", resp.VideoPaths)
	}
	for _, p := range resp.VideoPaths {
		if !strings.HasPrefix(p, filepath.Join(root, "raw_materials", "videos", "uploaded")) {
			t.Errorf("upload landed outside upload dir: %s", p)
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("uploaded file missing: %v", err)
		}
	}
	if resp.AudioPath != nil || resp.SRTPath != nil {
		t.Errorf("audio/srt paths = %v/%v, want null when not uploaded", resp.AudioPath, resp.SRTPath)
	}
}

func TestUploadAudioAndSubtitle(t *testing.T) {
	_, r, root := newTestServer(t, nil)

	var buf bytes.Buffer
	ct := newMultipart(t, &buf, map[string][]file{
		"videos":   {{"clip.mp4", "vvv"}},
		"audio":    {{"song.mp3", "mmm"}},
		"subtitle": {{"lyrics.srt", "1\n00:00:00,000 --> 00:00:01,000\nhi\n"}},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		VideoPaths []string `json:"video_paths"`
		AudioPath  string   `json:"audio_path"`
		SRTPath    string   `json:"srt_path"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(root, "raw_materials", "song", "song.mp3"); resp.AudioPath != want {
		t.Errorf("audio_path = %q, want %q", resp.AudioPath, want)
	}
	if want := filepath.Join(root, "raw_materials", "lyric", "lyrics.srt"); resp.SRTPath != want {
		t.Errorf("srt_path = %q, want %q", resp.SRTPath, want)
	}
	for _, p := range []string{resp.AudioPath, resp.SRTPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("uploaded file missing: %v", err)
		}
	}

	// The returned paths must be directly usable by a generate request.
	body := map[string]any{
		"video_paths": resp.VideoPaths,
		"audio_path":  resp.AudioPath,
		"srt_path":    resp.SRTPath,
		"language":    "en",
	}
	if gw := postGenerate(t, r, body); gw.Code != http.StatusOK {
		t.Errorf("generate with uploaded paths = %d: %s", gw.Code, gw.Body.String())
	}
}

func TestUploadEmpty(t *testing.T) {
	_, r, _ := newTestServer(t, nil)
	var buf bytes.Buffer
	ct := newMultipart(t, &buf, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	_, r, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

type file struct {
	name    string
	content string
}

func newMultipart(t *testing.T, buf *bytes.Buffer, fields map[string][]file) string {
	t.Helper()
	w := multipart.NewWriter(buf)
	for field, files := range fields {
		for _, f := range files {
			fw, err := w.CreateFormFile(field, f.name)
			if err != nil {
				t.Fatal(err)
			}
			fmt.Fprint(fw, f.content)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return w.FormDataContentType()
}
