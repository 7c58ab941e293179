package media

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// WAVInfo describes a PCM WAV file header.
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// ProbeWAV reads the header of a WAV file without decoding the samples.
func ProbeWAV(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if !d.WasPCMAccessed() && d.Err() != nil {
		return WAVInfo{}, fmt.Errorf("read wav header: %w", d.Err())
	}
	if d.SampleRate == 0 || d.NumChans == 0 {
		return WAVInfo{}, fmt.Errorf("not a valid wav file: %s", path)
	}
	dur, err := d.Duration()
	if err != nil {
		return WAVInfo{}, fmt.Errorf("wav duration: %w", err)
	}
	return WAVInfo{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Duration:   dur,
	}, nil
}
