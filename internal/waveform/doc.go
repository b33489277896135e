// Package waveform loads audio sources into fixed-length mono sample buffers.
//
// Every buffer produced here has exactly SampleRate*DurationSeconds samples:
// shorter sources are right-padded with zeros and longer sources keep their
// head. Multi-channel sources are downmixed by averaging channels. Load
// failures are returned as *LoadError, which carries failures.ErrSkip so
// corpus builders drop the sample and continue.
package waveform
