// Package server exposes the upload UI and the transcript downloads.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"tingxie/internal/config"
	"tingxie/internal/hook"
	"tingxie/internal/media"
	"tingxie/internal/pipeline"
	"tingxie/internal/transcript"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

const uploadField = "video"

// Transcriber is what the handlers need from the pipeline.
type Transcriber interface {
	Run(ctx context.Context, input media.Input) (pipeline.Summary, error)
}

// Status is the /status payload.
type Status struct {
	Running   bool     `json:"running"`
	UptimeSec float64  `json:"uptime_sec"`
	Runs      int64    `json:"runs"`
	Recent    []string `json:"recent"`
}

// Server handles uploads, runs the pipeline, and serves transcripts back.
type Server struct {
	cfg       *config.Config
	logger    *logrus.Logger
	pipe      Transcriber
	store     *transcript.Store
	hook      *hook.Runner
	metrics   *Metrics
	startedAt time.Time
	runs      atomic.Int64
}

func New(cfg *config.Config, logger *logrus.Logger, pipe Transcriber) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		pipe:      pipe,
		store:     transcript.NewStore(cfg.Paths.TranscriptsDir),
		hook:      hook.NewRunner(cfg, logger),
		metrics:   NewMetrics(),
		startedAt: time.Now(),
	}
}

// Router builds the echo app.
func (s *Server) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if s.cfg.Server.MaxUploadMB > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", s.cfg.Server.MaxUploadMB)))
	}
	e.Use(middleware.Recover())
	e.Use(s.requestLogger)

	e.GET("/", s.handleIndex)
	e.POST("/", s.handleUpload)
	e.GET("/transcripts/:name", s.handleDownload)
	e.GET("/healthz", s.handleHealth)
	e.GET("/status", s.handleStatus)
	if s.cfg.Metrics.Enabled {
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
	return e
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	e := s.Router()
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(s.cfg.Server.Addr)
	}()
	s.logger.Infof("listening on http://%s", s.cfg.Server.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.WithFields(logrus.Fields{
			"method":  c.Request().Method,
			"path":    c.Request().URL.Path,
			"status":  c.Response().Status,
			"elapsed": time.Since(start).Round(time.Millisecond).String(),
		}).Debug("http request")
		return err
	}
}

func (s *Server) handleIndex(c echo.Context) error {
	return s.renderPage(c, pageData{})
}

func (s *Server) handleUpload(c echo.Context) error {
	fh, err := c.FormFile(uploadField)
	if err != nil || fh.Filename == "" {
		return s.renderPage(c, pageData{Error: "请先选择要上传的视频文件。"})
	}

	reqID := uuid.NewString()
	log := s.logger.WithFields(logrus.Fields{"request": reqID, "upload": fh.Filename})

	tmpPath, err := s.saveUpload(fh)
	if err != nil {
		log.Errorf("save upload: %v", err)
		return s.renderPage(c, pageData{Error: "上传失败，请重试。"})
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warnf("remove upload: %v", err)
		}
	}()

	s.metrics.requests.Inc()
	s.runs.Add(1)

	sum, err := s.pipe.Run(c.Request().Context(), media.Input{Path: tmpPath, DisplayName: fh.Filename})
	if err != nil {
		stage := pipeline.Stage(err)
		if stage == "" {
			stage = "unknown"
		}
		s.metrics.failures.WithLabelValues(stage).Inc()
		log.Errorf("pipeline: %v", err)
		return s.renderPage(c, pageData{Error: userMessage(err)})
	}

	s.metrics.segments.Add(float64(sum.Segments))
	s.metrics.runSeconds.Observe(sum.Elapsed.Seconds())

	if s.hook.Enabled() {
		job := hook.Job{
			TranscriptPath: sum.TranscriptPath,
			Text:           sum.Text,
			DisplayName:    fh.Filename,
			Timestamp:      time.Now(),
		}
		if err := s.hook.Run(c.Request().Context(), job); err != nil {
			log.Warnf("hook: %v", err)
		}
	}

	return s.renderPage(c, pageData{
		Transcript:   sum.Text,
		DownloadName: filepath.Base(sum.TranscriptPath),
	})
}

func (s *Server) saveUpload(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "tingxie_upload_*"+filepath.Ext(fh.Filename))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func (s *Server) handleDownload(c echo.Context) error {
	path, err := s.store.Resolve(c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "transcript not found")
	}
	return c.Attachment(path, filepath.Base(path))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStatus(c echo.Context) error {
	recent, err := s.store.List()
	if err != nil {
		s.logger.Warnf("list transcripts: %v", err)
	}
	if len(recent) > 10 {
		recent = recent[:10]
	}
	return c.JSON(http.StatusOK, Status{
		Running:   true,
		UptimeSec: time.Since(s.startedAt).Seconds(),
		Runs:      s.runs.Load(),
		Recent:    recent,
	})
}

func (s *Server) renderPage(c echo.Context, data pageData) error {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// userMessage maps pipeline failures to the messages shown in the page.
func userMessage(err error) string {
	if errors.Is(err, pipeline.ErrEmptyTranscript) {
		return "模型未返回文本结果，请检查输入音频是否包含语音。"
	}
	var te *pipeline.TranscriptionError
	if errors.As(err, &te) {
		return fmt.Sprintf("转换失败：%v", te.Err)
	}
	return fmt.Sprintf("发生未知错误：%v", err)
}
