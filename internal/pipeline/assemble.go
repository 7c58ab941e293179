package pipeline

import (
	"context"
	"sort"
	"strings"

	"tingxie/internal/media"
)

// TranscribeFunc turns one segment into text.
type TranscribeFunc func(ctx context.Context, seg media.Segment) (string, error)

// Assemble transcribes the segments strictly in ordinal order and fuses the
// per-chunk texts into one newline-joined, trimmed transcript. The order of
// the output lines is the playback order, guaranteed by the explicit segment
// Index rather than by any filename sort.
func Assemble(ctx context.Context, segments []media.Segment, transcribe TranscribeFunc) (string, error) {
	ordered := make([]media.Segment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	texts := make([]string, 0, len(ordered))
	for _, seg := range ordered {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := transcribe(ctx, seg)
		if err != nil {
			return "", err
		}
		texts = append(texts, text)
	}

	fused := strings.TrimSpace(strings.Join(texts, "\n"))
	if fused == "" {
		return "", ErrEmptyTranscript
	}
	return fused, nil
}
