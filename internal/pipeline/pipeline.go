// Package pipeline orchestrates one transcription run: normalize the input
// media, chunk the audio, transcribe every chunk in order, fuse and persist
// the transcript. All intermediates live in a per-run workspace that is
// removed on every exit path.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"tingxie/internal/asr"
	"tingxie/internal/config"
	"tingxie/internal/media"
	"tingxie/internal/transcript"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EngineProvider hands out the recognition engine; in production this is
// asr.Shared so all runs reuse one worker.
type EngineProvider func() (asr.Engine, error)

// Summary is the outcome of a successful run.
type Summary struct {
	Text           string
	TranscriptPath string
	Segments       int
	AudioDuration  time.Duration
	Elapsed        time.Duration
}

// Pipeline wires the transcoder, engine, and store into Run.
type Pipeline struct {
	cfg        *config.Config
	logger     *logrus.Logger
	transcoder media.Transcoder
	engine     EngineProvider
	store      *transcript.Store
}

// New builds the production pipeline from config.
func New(cfg *config.Config, logger *logrus.Logger) (*Pipeline, error) {
	tc, err := media.NewFFmpeg(cfg.Media.FFmpegPath, cfg.Media.SampleRate, cfg.Media.ExtraArgs, logger)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		transcoder: tc,
		engine:     func() (asr.Engine, error) { return asr.Shared(cfg, logger) },
		store:      transcript.NewStore(cfg.Paths.TranscriptsDir),
	}, nil
}

// NewWith builds a pipeline from explicit collaborators; tests use this.
func NewWith(cfg *config.Config, logger *logrus.Logger, tc media.Transcoder, engine EngineProvider, store *transcript.Store) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logger, transcoder: tc, engine: engine, store: store}
}

// Run transcribes one media input and persists the transcript. Every failure
// comes back as a *TranscriptionError; the workspace is removed regardless.
func (p *Pipeline) Run(ctx context.Context, input media.Input) (Summary, error) {
	started := time.Now()
	runID := uuid.NewString()
	log := p.logger.WithFields(logrus.Fields{"run": runID, "input": input.DisplayName})

	if budget := time.Duration(p.cfg.Pipeline.TimeoutSec * float64(time.Second)); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	workspace, err := os.MkdirTemp("", "tingxie_run_")
	if err != nil {
		return Summary{}, fail(StageNormalize, fmt.Errorf("create workspace: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			log.Warnf("remove workspace: %v", err)
		}
	}()

	audio, err := p.transcoder.Normalize(ctx, input, workspace)
	if err != nil {
		return Summary{}, fail(StageNormalize, err)
	}
	log.Infof("normalized audio: %s @ %d Hz", audio.Duration.Round(time.Millisecond), audio.SampleRate)

	segments, err := p.transcoder.Segment(ctx, audio, workspace, p.cfg.Media.ChunkSeconds)
	if err != nil {
		return Summary{}, fail(StageSegment, err)
	}
	log.Infof("segmented into %d chunks of <=%ds", len(segments), p.cfg.Media.ChunkSeconds)

	engine, err := p.engine()
	if err != nil {
		return Summary{}, fail(StageEngine, err)
	}

	text, err := Assemble(ctx, segments, func(ctx context.Context, seg media.Segment) (string, error) {
		res, err := engine.Transcribe(ctx, seg.Path)
		if err != nil {
			return "", err
		}
		log.Debugf("chunk %d: %d chars", seg.Index, len(res.Text))
		return res.Text, nil
	})
	if err != nil {
		return Summary{}, fail(stageFor(err), err)
	}

	path, err := p.store.Save(input.DisplayName, text)
	if err != nil {
		return Summary{}, fail(StagePersist, err)
	}

	elapsed := time.Since(started)
	log.Infof("transcript persisted to %s (%d segments, %s)", path, len(segments), elapsed.Round(time.Millisecond))
	return Summary{
		Text:           text,
		TranscriptPath: path,
		Segments:       len(segments),
		AudioDuration:  audio.Duration,
		Elapsed:        elapsed,
	}, nil
}

// TranscribeSegments runs the engine over pre-segmented WAV files in a
// directory, ordinal order, and returns the fused text. The batch CLI uses
// this; nothing is persisted here.
func (p *Pipeline) TranscribeSegments(ctx context.Context, dir string) (string, error) {
	segments, err := media.CollectSegments(dir)
	if err != nil {
		return "", fail(StageSegment, err)
	}
	if len(segments) == 0 {
		return "", fail(StageSegment, &media.SegmentationError{})
	}
	engine, err := p.engine()
	if err != nil {
		return "", fail(StageEngine, err)
	}
	text, err := Assemble(ctx, segments, func(ctx context.Context, seg media.Segment) (string, error) {
		res, err := engine.Transcribe(ctx, seg.Path)
		if err != nil {
			return "", err
		}
		return res.Text, nil
	})
	if err != nil {
		return "", fail(stageFor(err), err)
	}
	return text, nil
}

func stageFor(err error) string {
	if errors.Is(err, ErrEmptyTranscript) {
		return StageAssemble
	}
	return StageEngine
}
