package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CheckpointDir string   `toml:"checkpoint_dir"`
	LogDir        string   `toml:"log_dir"`
	DatasetRoots  []string `toml:"dataset_roots"`
}

// Audio holds the constants of the waveform loader and feature extractor.
// They are part of the on-device contract: changing any of them invalidates
// trained models and exported artifacts.
type Audio struct {
	SampleRate      int     `toml:"sample_rate"`
	DurationSeconds float64 `toml:"duration_seconds"`
	NFFT            int     `toml:"n_fft"`
	HopLength       int     `toml:"hop_length"`
	NMels           int     `toml:"n_mels"`
	FMin            float64 `toml:"fmin"`
	// FMax of 0 means the Nyquist frequency.
	FMax        float64 `toml:"fmax"`
	LogEpsilon  float64 `toml:"log_epsilon"`
	NormEpsilon float64 `toml:"norm_epsilon"`
}

// Model describes the input shape the classifier expects.
type Model struct {
	InputMels   int `toml:"input_mels"`
	InputFrames int `toml:"input_frames"`
}

// Training contains configuration for dataset splitting and the epoch loop.
type Training struct {
	Epochs             int     `toml:"epochs"`
	BatchSize          int     `toml:"batch_size"`
	LearningRate       float64 `toml:"learning_rate"`
	ValidationFraction float64 `toml:"validation_fraction"`
	Seed               uint64  `toml:"seed"`
	// AllowFreshFallback permits starting from scratch when a resume was
	// requested but no snapshot exists. A warning is always logged.
	AllowFreshFallback bool   `toml:"allow_fresh_fallback"`
	Monitor            string `toml:"monitor"`
}

// FeatureCache contains configuration for the extracted feature cache.
type FeatureCache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for faultsense.
//
// Configuration sections by subsystem:
//   - Paths: checkpoint, log, and dataset directories
//   - Audio: loader and feature extractor constants
//   - Model: classifier input shape used by the shape adapter
//   - Training: split, balance, and epoch loop settings
//   - FeatureCache: sqlite cache of extracted tensors
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Audio        Audio        `toml:"audio"`
	Model        Model        `toml:"model"`
	Training     Training     `toml:"training"`
	FeatureCache FeatureCache `toml:"feature_cache"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/faultsense/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("faultsense.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the checkpoint and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CheckpointDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.FeatureCache.Enabled && strings.TrimSpace(c.FeatureCache.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.FeatureCache.Path), 0o755); err != nil {
			return fmt.Errorf("create feature cache directory: %w", err)
		}
	}
	return nil
}

// TargetLength returns the exact number of samples every waveform is padded
// or truncated to.
func (a Audio) TargetLength() int {
	return int(float64(a.SampleRate) * a.DurationSeconds)
}

// UpperFrequency returns FMax, or the Nyquist frequency when FMax is unset.
func (a Audio) UpperFrequency() float64 {
	if a.FMax <= 0 {
		return float64(a.SampleRate) / 2
	}
	return a.FMax
}

// Fingerprint identifies the numeric pipeline. Cached features and exported
// artifacts carry it so a constant change is detected instead of silently
// mixing incompatible tensors.
func (a Audio) Fingerprint() string {
	return fmt.Sprintf("sr=%d;dur=%g;nfft=%d;hop=%d;mels=%d;fmin=%g;fmax=%g;leps=%g;neps=%g",
		a.SampleRate, a.DurationSeconds, a.NFFT, a.HopLength, a.NMels,
		a.FMin, a.UpperFrequency(), a.LogEpsilon, a.NormEpsilon)
}

// StatePath returns the epoch-state file location.
func (c *Config) StatePath() string {
	return filepath.Join(c.Paths.CheckpointDir, "training_state.json")
}

// HistoryPath returns the run-history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.CheckpointDir, "history.db")
}

// BestModelPath returns the best-so-far snapshot location used by inference.
func (c *Config) BestModelPath() string {
	return filepath.Join(c.Paths.CheckpointDir, "best_model.msgpack")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
