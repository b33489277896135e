package config

import (
	"errors"
	"fmt"
	"math/bits"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateTraining(); err != nil {
		return err
	}
	return c.validateLogging()
}

// Validate checks the feature pipeline constants. It is exported because
// exported artifacts carry their own Audio section that must be checked
// before an extractor is built from it.
func (a Audio) Validate() error {
	if err := ensurePositiveMap(map[string]int{
		"audio.sample_rate": a.SampleRate,
		"audio.n_fft":       a.NFFT,
		"audio.hop_length":  a.HopLength,
		"audio.n_mels":      a.NMels,
	}); err != nil {
		return err
	}
	if bits.OnesCount(uint(a.NFFT)) != 1 {
		return fmt.Errorf("audio.n_fft must be a power of two, got %d", a.NFFT)
	}
	if a.DurationSeconds <= 0 {
		return errors.New("audio.duration_seconds must be positive")
	}
	if a.TargetLength() < a.NFFT {
		return fmt.Errorf("audio.duration_seconds yields %d samples, fewer than audio.n_fft (%d)", a.TargetLength(), a.NFFT)
	}
	if a.FMin < 0 {
		return errors.New("audio.fmin must be >= 0")
	}
	nyquist := float64(a.SampleRate) / 2
	if a.FMax < 0 || a.FMax > nyquist {
		return fmt.Errorf("audio.fmax must be between 0 and %g", nyquist)
	}
	if a.FMin >= a.UpperFrequency() {
		return errors.New("audio.fmin must be below audio.fmax")
	}
	if a.LogEpsilon <= 0 {
		return errors.New("audio.log_epsilon must be positive")
	}
	if a.NormEpsilon <= 0 {
		return errors.New("audio.norm_epsilon must be positive")
	}
	return nil
}

func (c *Config) validateModel() error {
	return ensurePositiveMap(map[string]int{
		"model.input_mels":   c.Model.InputMels,
		"model.input_frames": c.Model.InputFrames,
	})
}

func (c *Config) validateTraining() error {
	if err := ensurePositiveMap(map[string]int{
		"training.epochs":     c.Training.Epochs,
		"training.batch_size": c.Training.BatchSize,
	}); err != nil {
		return err
	}
	if c.Training.LearningRate <= 0 {
		return errors.New("training.learning_rate must be positive")
	}
	if c.Training.ValidationFraction <= 0 || c.Training.ValidationFraction >= 1 {
		return errors.New("training.validation_fraction must be between 0 and 1 (exclusive)")
	}
	switch c.Training.Monitor {
	case "val_accuracy", "val_loss":
	default:
		return fmt.Errorf("training.monitor: unsupported value %q (use val_accuracy or val_loss)", c.Training.Monitor)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
