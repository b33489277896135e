package features

import "math"

// HzToMel converts a frequency to the HTK mel scale.
func HzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

// MelToHz is the inverse of HzToMel.
func MelToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterbank returns nMels rows of weights over the nFFT/2+1 spectrum
// bins. Filter edges are evenly spaced on the mel scale between fmin and
// fmax and weights are interpolated on each bin's centre frequency. The DC
// bin always carries zero weight.
func melFilterbank(nMels, nFFT, sampleRate int, fmin, fmax float64) [][]float64 {
	bins := nFFT/2 + 1
	lo, hi := HzToMel(fmin), HzToMel(fmax)
	edges := make([]float64, nMels+2)
	for i := range edges {
		edges[i] = MelToHz(lo + (hi-lo)*float64(i)/float64(nMels+1))
	}

	binHz := make([]float64, bins)
	for k := range binHz {
		binHz[k] = float64(k) * float64(sampleRate) / float64(nFFT)
	}

	filters := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		lower, center, upper := edges[m], edges[m+1], edges[m+2]
		row := make([]float64, bins)
		for k := 1; k < bins; k++ {
			f := binHz[k]
			up := (f - lower) / (center - lower)
			down := (upper - f) / (upper - center)
			if w := math.Min(up, down); w > 0 {
				row[k] = w
			}
		}
		filters[m] = row
	}
	return filters
}
