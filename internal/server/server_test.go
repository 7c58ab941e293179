package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tingxie/internal/config"
	"tingxie/internal/logging"
	"tingxie/internal/media"
	"tingxie/internal/pipeline"
)

type fakeTranscriber struct {
	run func(ctx context.Context, input media.Input) (pipeline.Summary, error)
}

func (f *fakeTranscriber) Run(ctx context.Context, input media.Input) (pipeline.Summary, error) {
	return f.run(ctx, input)
}

func newTestServer(t *testing.T, run func(ctx context.Context, input media.Input) (pipeline.Summary, error)) *Server {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Paths.TranscriptsDir = t.TempDir()
	cfg.Metrics.Enabled = true
	return New(cfg, logging.NewTestLogger(), &fakeTranscriber{run: run})
}

func uploadRequest(t *testing.T, field, filename string, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(payload); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestIndexPage(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "视频语音转写") {
		t.Fatalf("index page missing title")
	}
}

func TestUploadHappyPath(t *testing.T) {
	transcriptPath := ""
	srv := newTestServer(t, func(ctx context.Context, input media.Input) (pipeline.Summary, error) {
		if input.DisplayName != "lecture.mp4" {
			t.Errorf("display name = %q", input.DisplayName)
		}
		if _, err := os.Stat(input.Path); err != nil {
			t.Errorf("upload temp file should exist during the run: %v", err)
		}
		return pipeline.Summary{
			Text:           "你好，\n今天天气很好。",
			TranscriptPath: transcriptPath,
			Segments:       2,
			Elapsed:        50 * time.Millisecond,
		}, nil
	})
	transcriptPath = filepath.Join(srv.cfg.Paths.TranscriptsDir, "lecture_transcript.txt")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, uploadField, "lecture.mp4", []byte("fake media")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "今天天气很好。") {
		t.Fatalf("response missing transcript text:\n%s", body)
	}
	if !strings.Contains(body, "/transcripts/lecture_transcript.txt") {
		t.Fatalf("response missing download link:\n%s", body)
	}
}

func TestUploadRemovesTempFile(t *testing.T) {
	var seen string
	srv := newTestServer(t, func(ctx context.Context, input media.Input) (pipeline.Summary, error) {
		seen = input.Path
		return pipeline.Summary{Text: "好"}, nil
	})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, uploadField, "a.mp4", []byte("x")))
	if seen == "" {
		t.Fatal("transcriber never ran")
	}
	if _, err := os.Stat(seen); !os.IsNotExist(err) {
		t.Fatalf("upload temp file should be removed after the run, stat err = %v", err)
	}
}

func TestUploadMissingFile(t *testing.T) {
	srv := newTestServer(t, func(ctx context.Context, input media.Input) (pipeline.Summary, error) {
		t.Fatal("transcriber must not run without an upload")
		return pipeline.Summary{}, nil
	})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "wrongfield", "a.mp4", []byte("x")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "请先选择要上传的视频文件。") {
		t.Fatalf("missing-file message absent:\n%s", rec.Body.String())
	}
}

func TestUploadPipelineFailure(t *testing.T) {
	srv := newTestServer(t, func(ctx context.Context, input media.Input) (pipeline.Summary, error) {
		return pipeline.Summary{}, &pipeline.TranscriptionError{
			Stage: pipeline.StageNormalize,
			Err:   errors.New("ffmpeg exited with status 1"),
		}
	})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, uploadField, "a.mp4", []byte("x")))
	body := rec.Body.String()
	if !strings.Contains(body, "转换失败：") {
		t.Fatalf("failure message absent:\n%s", body)
	}
	if !strings.Contains(body, "ffmpeg exited with status 1") {
		t.Fatalf("failure detail absent:\n%s", body)
	}
}

func TestUploadEmptyTranscript(t *testing.T) {
	srv := newTestServer(t, func(ctx context.Context, input media.Input) (pipeline.Summary, error) {
		return pipeline.Summary{}, &pipeline.TranscriptionError{
			Stage: pipeline.StageAssemble,
			Err:   pipeline.ErrEmptyTranscript,
		}
	})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, uploadField, "a.mp4", []byte("x")))
	if !strings.Contains(rec.Body.String(), "模型未返回文本结果") {
		t.Fatalf("empty-transcript message absent:\n%s", rec.Body.String())
	}
}

func TestDownloadTranscript(t *testing.T) {
	srv := newTestServer(t, nil)
	name := "lecture_transcript.txt"
	path := filepath.Join(srv.cfg.Paths.TranscriptsDir, name)
	if err := os.WriteFile(path, []byte("你好"), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transcripts/"+name, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "你好" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestDownloadRejectsUnknownName(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transcripts/absent_transcript.txt", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	srv := newTestServer(t, func(ctx context.Context, input media.Input) (pipeline.Summary, error) {
		return pipeline.Summary{Text: "好"}, nil
	})
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, uploadField, "a.mp4", []byte("x")))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var st Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !st.Running {
		t.Fatal("running should be true")
	}
	if st.Runs != 1 {
		t.Fatalf("runs = %d, want 1", st.Runs)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, func(ctx context.Context, input media.Input) (pipeline.Summary, error) {
		return pipeline.Summary{Text: "好", Segments: 3}, nil
	})
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, uploadField, "a.mp4", []byte("x")))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "tingxie_requests_total 1") {
		t.Fatalf("metrics missing request count:\n%s", body)
	}
	if !strings.Contains(body, "tingxie_segments_total 3") {
		t.Fatalf("metrics missing segment count:\n%s", body)
	}
}

func TestMetricsDisabled(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Paths.TranscriptsDir = t.TempDir()
	cfg.Metrics.Enabled = false
	srv := New(cfg, logging.NewTestLogger(), &fakeTranscriber{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
