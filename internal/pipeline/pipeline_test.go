package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tingxie/internal/asr"
	"tingxie/internal/config"
	"tingxie/internal/logging"
	"tingxie/internal/media"
	"tingxie/internal/transcript"
)

// fakeTranscoder fabricates segment files inside the workspace so the run
// exercises real workspace lifetime without ffmpeg.
type fakeTranscoder struct {
	segments     int
	normalizeErr error
	segmentErr   error
	workspaces   []string
}

func (f *fakeTranscoder) Normalize(_ context.Context, _ media.Input, workspace string) (media.Audio, error) {
	f.workspaces = append(f.workspaces, workspace)
	if f.normalizeErr != nil {
		return media.Audio{}, f.normalizeErr
	}
	path := filepath.Join(workspace, "audio.wav")
	if err := os.WriteFile(path, []byte("pcm"), 0o644); err != nil {
		return media.Audio{}, err
	}
	return media.Audio{Path: path, SampleRate: 16000, Duration: 42 * time.Second}, nil
}

func (f *fakeTranscoder) Segment(_ context.Context, _ media.Audio, workspace string, _ int) ([]media.Segment, error) {
	if f.segmentErr != nil {
		return nil, f.segmentErr
	}
	segs := make([]media.Segment, 0, f.segments)
	for i := 0; i < f.segments; i++ {
		path := filepath.Join(workspace, fmt.Sprintf("chunk_%05d.wav", i))
		if err := os.WriteFile(path, []byte("pcm"), 0o644); err != nil {
			return nil, err
		}
		segs = append(segs, media.Segment{Path: path, Index: i})
	}
	return segs, nil
}

// fakeEngine answers from a per-ordinal script.
type fakeEngine struct {
	texts []string
	err   error
}

func (e *fakeEngine) Transcribe(_ context.Context, audioPath string) (asr.Result, error) {
	if e.err != nil {
		return asr.Result{}, e.err
	}
	var idx int
	fmt.Sscanf(filepath.Base(audioPath), "chunk_%05d.wav", &idx)
	if idx < len(e.texts) {
		return asr.Result{Text: e.texts[idx]}, nil
	}
	return asr.Result{}, nil
}

func (e *fakeEngine) Close() error { return nil }

func newTestPipeline(t *testing.T, tc media.Transcoder, eng asr.Engine) (*Pipeline, *transcript.Store) {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.Paths.TranscriptsDir = t.TempDir()
	store := transcript.NewStore(cfg.Paths.TranscriptsDir)
	provider := func() (asr.Engine, error) { return eng, nil }
	return NewWith(cfg, logging.NewTestLogger(), tc, provider, store), store
}

func TestRunProducesOrderedTranscript(t *testing.T) {
	tc := &fakeTranscoder{segments: 3}
	eng := &fakeEngine{texts: []string{"你好，", "今天天气很好。", ""}}
	p, _ := newTestPipeline(t, tc, eng)

	sum, err := p.Run(context.Background(), media.Input{Path: "/in/lecture.mp4", DisplayName: "lecture.mp4"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Text != "你好，\n今天天气很好。" {
		t.Fatalf("text = %q", sum.Text)
	}
	if sum.Segments != 3 {
		t.Fatalf("segments = %d", sum.Segments)
	}
	data, err := os.ReadFile(sum.TranscriptPath)
	if err != nil {
		t.Fatalf("read persisted: %v", err)
	}
	if string(data) != sum.Text {
		t.Fatalf("persisted %q, want %q", data, sum.Text)
	}
	if filepath.Base(sum.TranscriptPath) != "lecture_transcript.txt" {
		t.Fatalf("transcript name = %q", filepath.Base(sum.TranscriptPath))
	}
}

func TestRunIsIdempotentForSameName(t *testing.T) {
	tc := &fakeTranscoder{segments: 1}
	eng := &fakeEngine{texts: []string{"文本"}}
	p, _ := newTestPipeline(t, tc, eng)

	in := media.Input{Path: "/in/a.mp4", DisplayName: "a.mp4"}
	first, err := p.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.TranscriptPath != second.TranscriptPath || first.Text != second.Text {
		t.Fatalf("expected identical overwrite, got %+v vs %+v", first, second)
	}
}

func TestRunCleansWorkspaceOnSuccessAndFailure(t *testing.T) {
	cases := []struct {
		name string
		tc   *fakeTranscoder
		eng  asr.Engine
	}{
		{"success", &fakeTranscoder{segments: 2}, &fakeEngine{texts: []string{"a", "b"}}},
		{"conversion failure", &fakeTranscoder{normalizeErr: &media.ConversionError{Stderr: "bad codec"}}, &fakeEngine{}},
		{"engine failure", &fakeTranscoder{segments: 2}, &fakeEngine{err: &asr.InvocationError{Err: errors.New("boom")}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p, _ := newTestPipeline(t, c.tc, c.eng)
			_, _ = p.Run(context.Background(), media.Input{Path: "/in/x.mp4", DisplayName: "x.mp4"})
			for _, ws := range c.tc.workspaces {
				if _, err := os.Stat(ws); !os.IsNotExist(err) {
					t.Fatalf("workspace %s survived the run", ws)
				}
			}
		})
	}
}

func TestRunMapsFailuresToTranscriptionError(t *testing.T) {
	cases := []struct {
		name      string
		tc        *fakeTranscoder
		eng       asr.Engine
		wantStage string
		wantIs    error
	}{
		{
			name:      "conversion",
			tc:        &fakeTranscoder{normalizeErr: &media.ConversionError{Stderr: "unsupported codec"}},
			eng:       &fakeEngine{},
			wantStage: StageNormalize,
		},
		{
			name:      "segmentation",
			tc:        &fakeTranscoder{segmentErr: &media.SegmentationError{}},
			eng:       &fakeEngine{},
			wantStage: StageSegment,
		},
		{
			name:      "engine invocation",
			tc:        &fakeTranscoder{segments: 1},
			eng:       &fakeEngine{err: &asr.InvocationError{Err: errors.New("boom")}},
			wantStage: StageEngine,
		},
		{
			name:      "empty transcript",
			tc:        &fakeTranscoder{segments: 2},
			eng:       &fakeEngine{texts: []string{"", ""}},
			wantStage: StageAssemble,
			wantIs:    ErrEmptyTranscript,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p, _ := newTestPipeline(t, c.tc, c.eng)
			_, err := p.Run(context.Background(), media.Input{Path: "/in/x.mp4", DisplayName: "x.mp4"})
			var te *TranscriptionError
			if !errors.As(err, &te) {
				t.Fatalf("expected TranscriptionError, got %v", err)
			}
			if te.Stage != c.wantStage {
				t.Fatalf("stage = %q, want %q", te.Stage, c.wantStage)
			}
			if c.wantIs != nil && !errors.Is(err, c.wantIs) {
				t.Fatalf("expected errors.Is(%v), got %v", c.wantIs, err)
			}
		})
	}
}

func TestRunEngineNotReadyBlocksRun(t *testing.T) {
	tc := &fakeTranscoder{segments: 1}
	p, _ := newTestPipeline(t, tc, nil)
	notReady := &asr.NotReadyError{Path: "/models/missing"}
	p.engine = func() (asr.Engine, error) { return nil, notReady }

	_, err := p.Run(context.Background(), media.Input{Path: "/in/x.mp4", DisplayName: "x.mp4"})
	var nr *asr.NotReadyError
	if !errors.As(err, &nr) {
		t.Fatalf("expected NotReadyError through the umbrella, got %v", err)
	}
	if Stage(err) != StageEngine {
		t.Fatalf("stage = %q", Stage(err))
	}
}

func TestRunHonorsTimeoutBudget(t *testing.T) {
	tc := &fakeTranscoder{segments: 3}
	slow := &slowEngine{delay: 200 * time.Millisecond}
	p, _ := newTestPipeline(t, tc, slow)
	p.cfg.Pipeline.TimeoutSec = 0.05

	_, err := p.Run(context.Background(), media.Input{Path: "/in/x.mp4", DisplayName: "x.mp4"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

type slowEngine struct {
	delay time.Duration
}

func (e *slowEngine) Transcribe(ctx context.Context, _ string) (asr.Result, error) {
	select {
	case <-time.After(e.delay):
		return asr.Result{Text: "x"}, nil
	case <-ctx.Done():
		return asr.Result{}, ctx.Err()
	}
}

func (e *slowEngine) Close() error { return nil }

func TestTranscribeSegmentsEmptyDirIsSegmentationError(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeTranscoder{}, &fakeEngine{})
	_, err := p.TranscribeSegments(context.Background(), t.TempDir())
	var se *media.SegmentationError
	if !errors.As(err, &se) {
		t.Fatalf("expected SegmentationError, got %v", err)
	}
}

func TestTranscribeSegmentsOrdersChunks(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"chunk_00001.wav", "chunk_00000.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("pcm"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	eng := &fakeEngine{texts: []string{"第一", "第二"}}
	p, _ := newTestPipeline(t, &fakeTranscoder{}, eng)

	text, err := p.TranscribeSegments(context.Background(), dir)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if text != "第一\n第二" {
		t.Fatalf("text = %q", text)
	}
}
