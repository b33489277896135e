// Package export writes the portable inference artifact: the pipeline
// constants, int8-quantized classifier weights, and a reference waveform with
// the feature digest and score the training-side code produces for it. An
// on-device pipeline is conformant when it reproduces both byte-for-byte.
package export

import (
	"fmt"
	"math"

	"faultsense/internal/config"
	"faultsense/internal/model"
)

// FormatVersion is bumped when the artifact layout changes.
const FormatVersion = 1

// Pipeline pins the feature extractor. The descriptive fields are fixed by
// the extractor implementation and recorded for on-device implementers.
type Pipeline struct {
	SampleRate      int     `msgpack:"sample_rate"`
	DurationSeconds float64 `msgpack:"duration_seconds"`
	NFFT            int     `msgpack:"n_fft"`
	HopLength       int     `msgpack:"hop_length"`
	NMels           int     `msgpack:"n_mels"`
	FMin            float64 `msgpack:"fmin"`
	FMax            float64 `msgpack:"fmax"`
	LogEpsilon      float64 `msgpack:"log_epsilon"`
	NormEpsilon     float64 `msgpack:"norm_epsilon"`
	Window          string  `msgpack:"window"`
	MelScale        string  `msgpack:"mel_scale"`
	Spectrum        string  `msgpack:"spectrum"`
	Centered        bool    `msgpack:"centered"`
	AxisOrder       string  `msgpack:"axis_order"`
}

// NewPipeline describes the extractor built from audio.
func NewPipeline(audio config.Audio) Pipeline {
	return Pipeline{
		SampleRate:      audio.SampleRate,
		DurationSeconds: audio.DurationSeconds,
		NFFT:            audio.NFFT,
		HopLength:       audio.HopLength,
		NMels:           audio.NMels,
		FMin:            audio.FMin,
		FMax:            audio.UpperFrequency(),
		LogEpsilon:      audio.LogEpsilon,
		NormEpsilon:     audio.NormEpsilon,
		Window:          "hann-periodic",
		MelScale:        "htk",
		Spectrum:        "magnitude",
		Centered:        false,
		AxisOrder:       "mel,frame,channel",
	}
}

// Audio converts the pipeline back into extractor constants.
func (p Pipeline) Audio() config.Audio {
	return config.Audio{
		SampleRate:      p.SampleRate,
		DurationSeconds: p.DurationSeconds,
		NFFT:            p.NFFT,
		HopLength:       p.HopLength,
		NMels:           p.NMels,
		FMin:            p.FMin,
		FMax:            p.FMax,
		LogEpsilon:      p.LogEpsilon,
		NormEpsilon:     p.NormEpsilon,
	}
}

// QuantizedModel is a classifier with symmetric per-tensor int8 weights.
type QuantizedModel struct {
	Mels        int     `msgpack:"mels"`
	Frames      int     `msgpack:"frames"`
	Weights     []int8  `msgpack:"weights"`
	WeightScale float64 `msgpack:"weight_scale"`
	Bias        float64 `msgpack:"bias"`
}

// Quantize maps weights to int8 with scale max|w|/127.
func Quantize(m *model.Model) QuantizedModel {
	var maxAbs float64
	for _, w := range m.Weights {
		maxAbs = math.Max(maxAbs, math.Abs(w))
	}
	scale := maxAbs / 127
	q := QuantizedModel{Mels: m.Mels, Frames: m.Frames, Weights: make([]int8, len(m.Weights)), WeightScale: scale, Bias: m.Bias}
	if scale == 0 {
		return q
	}
	for i, w := range m.Weights {
		q.Weights[i] = int8(math.Max(-127, math.Min(127, math.Round(w/scale))))
	}
	return q
}

// Dequantize rebuilds an inference-only model.
func (q QuantizedModel) Dequantize() (*model.Model, error) {
	if len(q.Weights) != 2*q.Mels {
		return nil, fmt.Errorf("quantized model has %d weights for %d mels", len(q.Weights), q.Mels)
	}
	m := model.New(q.Mels, q.Frames, 0)
	for i, w := range q.Weights {
		m.Weights[i] = float64(w) * q.WeightScale
	}
	m.Bias = q.Bias
	return m, nil
}

// Reference is the conformance vector shipped with the artifact.
// FeatureDigest covers the extractor output and FittedDigest the tensor
// after the shape adapter, which is the exact model input.
type Reference struct {
	Input         []float32 `msgpack:"input"`
	InputDigest   string    `msgpack:"input_digest"`
	FeatureDigest string    `msgpack:"feature_digest"`
	FittedDigest  string    `msgpack:"fitted_digest"`
	Score         float64   `msgpack:"score"`
}

// Artifact is the exported file content.
type Artifact struct {
	FormatVersion int            `msgpack:"format_version"`
	Pipeline      Pipeline       `msgpack:"pipeline"`
	Model         QuantizedModel `msgpack:"model"`
	Reference     Reference      `msgpack:"reference"`
	SourceRunID   string         `msgpack:"source_run_id"`
	SourceEpoch   int            `msgpack:"source_epoch"`
	SourceDigest  string         `msgpack:"source_digest"`
	CreatedAt     string         `msgpack:"created_at"`
}
