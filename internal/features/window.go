package features

import "math"

// hann returns a periodic Hann window of length n.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// FrameCount returns the number of full frames in n samples.
func FrameCount(n, frameLength, hop int) int {
	if n < frameLength || hop <= 0 {
		return 0
	}
	return 1 + (n-frameLength)/hop
}
