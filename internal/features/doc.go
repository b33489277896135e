// Package features turns fixed-length waveforms into normalized mel-log
// spectrogram tensors.
//
// The extractor is pure and deterministic: frames of NFFT samples advanced
// by HopLength with no centering or end padding, a periodic Hann window, the
// FFT magnitude spectrum, an HTK-scale triangular mel filterbank spanning
// [FMin, FMax], log(x+LogEpsilon), (mel, frame) axis order, tensor-wide
// standardization with NormEpsilon in the denominator, and a trailing channel
// axis. All arithmetic is float64 and the stored values are float32, so the
// same constants yield the same bytes on every run.
//
// Fitting a tensor to a model's input shape is a separate step, see Adapter.
package features
