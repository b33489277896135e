package features

import "math"

// Adapter fits tensors to a model's input shape. It is applied after
// extraction so the extractor output stays verifiable on its own.
type Adapter struct {
	Mels   int
	Frames int
}

// Fit returns t unchanged when it already matches, otherwise a bilinear
// resize using half-pixel centres. The boolean reports whether a resize
// happened so callers can log it.
func (a Adapter) Fit(t Tensor) (Tensor, bool) {
	if a.Mels <= 0 || a.Frames <= 0 || (t.Mels == a.Mels && t.Frames == a.Frames) {
		return t, false
	}
	channels := max(t.Channels, 1)
	out := Tensor{
		Mels:     a.Mels,
		Frames:   a.Frames,
		Channels: channels,
		Data:     make([]float32, a.Mels*a.Frames*channels),
	}
	rowScale := float64(t.Mels) / float64(a.Mels)
	colScale := float64(t.Frames) / float64(a.Frames)

	for y := 0; y < a.Mels; y++ {
		y0, y1, wy := sourceIndex(y, rowScale, t.Mels)
		for x := 0; x < a.Frames; x++ {
			x0, x1, wx := sourceIndex(x, colScale, t.Frames)
			for c := 0; c < channels; c++ {
				at := func(m, f int) float64 {
					return float64(t.Data[(m*t.Frames+f)*channels+c])
				}
				top := at(y0, x0) + (at(y0, x1)-at(y0, x0))*wx
				bottom := at(y1, x0) + (at(y1, x1)-at(y1, x0))*wx
				out.Data[(y*a.Frames+x)*channels+c] = float32(top + (bottom-top)*wy)
			}
		}
	}
	return out, true
}

func sourceIndex(dst int, scale float64, size int) (int, int, float64) {
	src := (float64(dst)+0.5)*scale - 0.5
	if src < 0 {
		src = 0
	}
	lo := int(math.Floor(src))
	if lo > size-1 {
		lo = size - 1
	}
	hi := min(lo+1, size-1)
	return lo, hi, src - float64(lo)
}
