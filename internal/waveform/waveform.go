package waveform

import (
	"errors"
	"fmt"

	"faultsense/internal/config"
	"faultsense/internal/failures"
)

// Waveform is an immutable fixed-length mono buffer.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the buffer length in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// LoadError reports a source that could not be turned into a waveform.
type LoadError struct {
	Path string
	Op   string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("waveform %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("waveform %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes both the skip marker and the underlying cause.
func (e *LoadError) Unwrap() []error {
	return []error{failures.ErrSkip, e.Err}
}

var (
	// ErrUnsupportedFormat indicates a container or sample encoding the loader
	// does not decode.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrEmpty indicates a source without any samples.
	ErrEmpty = errors.New("no audio samples")
)

// FromSamples builds a waveform from an in-memory mono buffer already at the
// target rate, applying the same pad/truncate rule as Load.
func FromSamples(samples []float32, sampleRate int, cfg config.Audio) (Waveform, error) {
	if sampleRate != cfg.SampleRate {
		resampled, err := Resample(samples, sampleRate, cfg.SampleRate)
		if err != nil {
			return Waveform{}, &LoadError{Op: "resample", Err: err}
		}
		samples = resampled
	}
	return Waveform{
		Samples:    FixLength(samples, cfg.TargetLength()),
		SampleRate: cfg.SampleRate,
	}, nil
}

// FixLength returns a copy of samples padded with zeros or truncated to n.
func FixLength(samples []float32, n int) []float32 {
	out := make([]float32, n)
	copy(out, samples)
	return out
}
