package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

const (
	normalizedName = "audio.wav"
	segmentsDir    = "segments"
	chunkPrefix    = "chunk_"
	// Five digits keeps lexical order chronological far past 999 chunks.
	chunkPattern = chunkPrefix + "%05d.wav"
)

// FFmpeg is the Transcoder backed by the ffmpeg binary.
type FFmpeg struct {
	Binary     string
	SampleRate int
	ExtraArgs  []string
	Logger     *logrus.Logger
}

// NewFFmpeg builds an FFmpeg transcoder. extraArgs is a single shell-quoted
// string from config.
func NewFFmpeg(binary string, sampleRate int, extraArgs string, logger *logrus.Logger) (*FFmpeg, error) {
	if binary == "" {
		binary = "ffmpeg"
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample_rate must be positive (got %d)", sampleRate)
	}
	args, err := shlex.Split(extraArgs)
	if err != nil {
		return nil, fmt.Errorf("parse media.extra_args: %w", err)
	}
	return &FFmpeg{Binary: binary, SampleRate: sampleRate, ExtraArgs: args, Logger: logger}, nil
}

// Normalize extracts the audio track to a mono 16-bit WAV at the configured
// sample rate, discarding video. The output lives in the workspace.
func (f *FFmpeg) Normalize(ctx context.Context, input Input, workspace string) (Audio, error) {
	out := filepath.Join(workspace, normalizedName)
	args := normalizeArgs(input.Path, out, f.SampleRate, f.ExtraArgs)
	if stderr, err := f.run(ctx, args); err != nil {
		return Audio{}, &ConversionError{Stderr: stderr, Err: err}
	}
	info, err := ProbeWAV(out)
	if err != nil {
		return Audio{}, &ConversionError{Err: fmt.Errorf("probe normalized audio: %w", err)}
	}
	if info.SampleRate != f.SampleRate || info.Channels != 1 {
		return Audio{}, &ConversionError{Err: fmt.Errorf("normalized audio is %d Hz / %d ch, want %d Hz mono", info.SampleRate, info.Channels, f.SampleRate)}
	}
	return Audio{Path: out, SampleRate: info.SampleRate, Duration: info.Duration}, nil
}

// Segment stream-copies the normalized audio into consecutive chunks of
// chunkSeconds. Chunk content is bit-exact; no re-encoding happens.
func (f *FFmpeg) Segment(ctx context.Context, audio Audio, workspace string, chunkSeconds int) ([]Segment, error) {
	if chunkSeconds <= 0 {
		chunkSeconds = 15
	}
	dir := filepath.Join(workspace, segmentsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &SegmentationError{Err: err}
	}
	args := segmentArgs(audio.Path, dir, chunkSeconds)
	if stderr, err := f.run(ctx, args); err != nil {
		return nil, &SegmentationError{Stderr: stderr, Err: err}
	}
	segs, err := CollectSegments(dir)
	if err != nil {
		return nil, &SegmentationError{Err: err}
	}
	if len(segs) == 0 {
		return nil, &SegmentationError{}
	}
	return segs, nil
}

func (f *FFmpeg) run(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, f.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if f.Logger != nil {
		f.Logger.Debugf("ffmpeg %s", strings.Join(args, " "))
	}
	if err := cmd.Run(); err != nil {
		return strings.TrimSpace(stderr.String()), err
	}
	return "", nil
}

func normalizeArgs(in, out string, sampleRate int, extra []string) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", in,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-sample_fmt", "s16",
	}
	args = append(args, extra...)
	return append(args, out)
}

func segmentArgs(in, dir string, chunkSeconds int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", in,
		"-f", "segment",
		"-segment_time", strconv.Itoa(chunkSeconds),
		"-c", "copy",
		filepath.Join(dir, chunkPattern),
	}
}

// CollectSegments lists chunk files in dir and returns them ordered by the
// ordinal embedded in the filename. The ordinal is carried explicitly so the
// pipeline never depends on filesystem listing order.
func CollectSegments(dir string) ([]Segment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	segs := make([]Segment, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		idx, ok := parseChunkIndex(e.Name())
		if !ok {
			continue
		}
		segs = append(segs, Segment{Path: filepath.Join(dir, e.Name()), Index: idx})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].Index < segs[j].Index })
	return segs, nil
}

func parseChunkIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, chunkPrefix) || !strings.HasSuffix(name, ".wav") {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, chunkPrefix), ".wav")
	idx, err := strconv.Atoi(digits)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
