package waveform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"faultsense/internal/config"
)

const wavFormatPCM = 1

// Load decodes a WAV file, downmixes it to mono, resamples it to the
// configured rate and fixes its length.
func Load(path string, cfg config.Audio) (Waveform, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".wav" {
		return Waveform{}, &LoadError{Path: path, Op: "open", Err: fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)}
	}

	file, err := os.Open(path)
	if err != nil {
		return Waveform{}, &LoadError{Path: path, Op: "open", Err: err}
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return Waveform{}, &LoadError{Path: path, Op: "decode", Err: fmt.Errorf("%w: not a valid wav file", ErrUnsupportedFormat)}
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return Waveform{}, &LoadError{Path: path, Op: "decode", Err: fmt.Errorf("%w: wav format tag %d", ErrUnsupportedFormat, decoder.WavAudioFormat)}
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Waveform{}, &LoadError{Path: path, Op: "decode", Err: err}
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return Waveform{}, &LoadError{Path: path, Op: "decode", Err: ErrEmpty}
	}

	mono, err := downmix(buf, int(decoder.BitDepth))
	if err != nil {
		return Waveform{}, &LoadError{Path: path, Op: "decode", Err: err}
	}

	w, err := FromSamples(mono, buf.Format.SampleRate, cfg)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			loadErr.Path = path
		}
		return Waveform{}, err
	}
	return w, nil
}

// downmix converts interleaved integer PCM into mono float samples in [-1, 1]
// by averaging the channels of each frame.
func downmix(buf *audio.IntBuffer, bitDepth int) ([]float32, error) {
	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}
	if buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, buf.Format.SampleRate)
	}
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, bitDepth)
	}

	scale := float64(int64(1) << (bitDepth - 1))
	offset := 0.0
	if bitDepth == 8 {
		// 8-bit WAV is unsigned.
		offset = 128
	}

	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, ErrEmpty
	}
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += (float64(buf.Data[i*channels+c]) - offset) / scale
		}
		out[i] = float32(sum / float64(channels))
	}
	return out, nil
}
