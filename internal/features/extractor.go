package features

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"faultsense/internal/config"
	"faultsense/internal/waveform"
)

// Extractor computes mel-log feature tensors. It holds precomputed FFT
// twiddles, window and filterbank; it is not safe for concurrent use.
type Extractor struct {
	cfg     config.Audio
	fft     *fourier.FFT
	window  []float64
	filters [][]float64
	frame   []float64
	coeffs  []complex128
}

// NewExtractor validates the pipeline constants and precomputes tables.
func NewExtractor(cfg config.Audio) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("feature extractor: %w", err)
	}
	return &Extractor{
		cfg:     cfg,
		fft:     fourier.NewFFT(cfg.NFFT),
		window:  hann(cfg.NFFT),
		filters: melFilterbank(cfg.NMels, cfg.NFFT, cfg.SampleRate, cfg.FMin, cfg.UpperFrequency()),
		frame:   make([]float64, cfg.NFFT),
		coeffs:  make([]complex128, cfg.NFFT/2+1),
	}, nil
}

// Config returns the constants the extractor was built with.
func (e *Extractor) Config() config.Audio {
	return e.cfg
}

// Shape returns the (mels, frames) shape every Extract call produces.
func (e *Extractor) Shape() (int, int) {
	return e.cfg.NMels, FrameCount(e.cfg.TargetLength(), e.cfg.NFFT, e.cfg.HopLength)
}

// Extract transforms a waveform into a normalized (mel, frame, 1) tensor.
// The waveform must already have the configured rate and length.
func (e *Extractor) Extract(w waveform.Waveform) (Tensor, error) {
	if w.SampleRate != e.cfg.SampleRate {
		return Tensor{}, fmt.Errorf("extract: waveform rate %d, extractor expects %d", w.SampleRate, e.cfg.SampleRate)
	}
	if len(w.Samples) != e.cfg.TargetLength() {
		return Tensor{}, fmt.Errorf("extract: waveform has %d samples, extractor expects %d", len(w.Samples), e.cfg.TargetLength())
	}

	nMels, nFrames := e.Shape()
	values := make([]float64, nMels*nFrames)
	magnitude := make([]float64, len(e.coeffs))

	for f := 0; f < nFrames; f++ {
		start := f * e.cfg.HopLength
		for i := range e.frame {
			e.frame[i] = float64(w.Samples[start+i]) * e.window[i]
		}
		e.coeffs = e.fft.Coefficients(e.coeffs, e.frame)
		for k, c := range e.coeffs {
			magnitude[k] = cmplx.Abs(c)
		}
		for m, row := range e.filters {
			var energy float64
			for k, weight := range row {
				if weight != 0 {
					energy += weight * magnitude[k]
				}
			}
			values[m*nFrames+f] = math.Log(energy + e.cfg.LogEpsilon)
		}
	}

	standardize(values, e.cfg.NormEpsilon)

	data := make([]float32, len(values))
	for i, v := range values {
		data[i] = float32(v)
	}
	return Tensor{Mels: nMels, Frames: nFrames, Channels: 1, Data: data}, nil
}

// standardize applies (x-mean)/(std+eps) in place with population std.
func standardize(values []float64, eps float64) {
	if len(values) == 0 {
		return
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(values)))
	for i, v := range values {
		values[i] = (v - mean) / (std + eps)
	}
}
