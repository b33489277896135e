package testsupport

import (
	"path/filepath"
	"testing"

	"faultsense/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Audio defaults are scaled down (8 kHz, 1 s, 256-point FFT, 32 mels) so
// feature extraction stays fast; use WithAudio to restore the canonical
// constants.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CheckpointDir = filepath.Join(base, "checkpoints")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.FeatureCache.Path = filepath.Join(base, "cache", "features.db")
	cfgVal.Audio = SmallAudio()
	cfgVal.Model = config.Model{InputMels: 32, InputFrames: 32}
	cfgVal.Training.Epochs = 4
	cfgVal.Training.BatchSize = 8
	cfgVal.Training.LearningRate = 0.01
	cfgVal.Training.ValidationFraction = 0.5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// SmallAudio returns reduced pipeline constants for fast tests.
func SmallAudio() config.Audio {
	audio := config.DefaultAudio()
	audio.SampleRate = 8000
	audio.DurationSeconds = 1
	audio.NFFT = 256
	audio.HopLength = 128
	audio.NMels = 32
	return audio
}

// WithAudio overrides the audio section.
func WithAudio(audio config.Audio) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Audio = audio
	}
}

// WithModelShape overrides the model input shape.
func WithModelShape(mels, frames int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Model = config.Model{InputMels: mels, InputFrames: frames}
	}
}

// WithEpochs overrides the number of training epochs.
func WithEpochs(epochs int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Training.Epochs = epochs
	}
}

// WithFeatureCache enables the sqlite feature cache.
func WithFeatureCache() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.FeatureCache.Enabled = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CheckpointDir)
}
