package testsupport

import (
	"math"
	"math/rand/v2"
)

// Tone returns n samples of a sine wave.
func Tone(sampleRate, n int, freq, amplitude float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

// Noise returns n samples of seeded uniform noise in [-amplitude, amplitude].
func Noise(seed int64, n int, amplitude float64) []float32 {
	rng := rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * (2*rng.Float64() - 1))
	}
	return out
}

// Mix sums equal-length signals sample by sample.
func Mix(signals ...[]float32) []float32 {
	if len(signals) == 0 {
		return nil
	}
	out := make([]float32, len(signals[0]))
	for _, s := range signals {
		for i := range out {
			if i < len(s) {
				out[i] += s[i]
			}
		}
	}
	return out
}
