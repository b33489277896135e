package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"faultsense/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantCheckpoints := filepath.Join(tempHome, ".local", "share", "faultsense", "checkpoints")
	if cfg.Paths.CheckpointDir != wantCheckpoints {
		t.Fatalf("unexpected checkpoint dir: got %q want %q", cfg.Paths.CheckpointDir, wantCheckpoints)
	}
	if cfg.Audio.SampleRate != 22050 || cfg.Audio.NFFT != 2048 || cfg.Audio.HopLength != 512 || cfg.Audio.NMels != 128 {
		t.Fatalf("unexpected audio defaults: %+v", cfg.Audio)
	}
	if cfg.Audio.TargetLength() != 110250 {
		t.Fatalf("expected 110250 target samples, got %d", cfg.Audio.TargetLength())
	}
	if cfg.Audio.UpperFrequency() != 11025 {
		t.Fatalf("expected Nyquist upper frequency, got %g", cfg.Audio.UpperFrequency())
	}
	if cfg.Training.AllowFreshFallback {
		t.Fatal("expected fresh fallback disabled by default")
	}
	if cfg.StatePath() != filepath.Join(wantCheckpoints, "training_state.json") {
		t.Fatalf("unexpected state path %q", cfg.StatePath())
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "faultsense.toml")

	contents := `
[paths]
checkpoint_dir = "` + filepath.Join(dir, "ckpt") + `"
dataset_roots = ["` + filepath.Join(dir, "a") + `", "` + filepath.Join(dir, "a") + `", " "]

[audio]
sample_rate = 16000
duration_seconds = 2.0

[training]
epochs = 3
monitor = " VAL_LOSS "

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config to be read from %q, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.TargetLength() != 32000 {
		t.Fatalf("unexpected audio config %+v", cfg.Audio)
	}
	if cfg.Audio.NFFT != 2048 {
		t.Fatalf("expected unspecified fields to keep defaults, got n_fft=%d", cfg.Audio.NFFT)
	}
	if len(cfg.Paths.DatasetRoots) != 1 {
		t.Fatalf("expected dataset roots to be deduplicated, got %v", cfg.Paths.DatasetRoots)
	}
	if cfg.Training.Monitor != "val_loss" {
		t.Fatalf("expected monitor normalized, got %q", cfg.Training.Monitor)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected format normalized, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"nfft not power of two", func(c *config.Config) { c.Audio.NFFT = 2000 }, "power of two"},
		{"zero log epsilon", func(c *config.Config) { c.Audio.LogEpsilon = 0 }, "log_epsilon"},
		{"fmax above nyquist", func(c *config.Config) { c.Audio.FMax = 20000 }, "fmax"},
		{"validation fraction one", func(c *config.Config) { c.Training.ValidationFraction = 1 }, "validation_fraction"},
		{"unknown monitor", func(c *config.Config) { c.Training.Monitor = "auc" }, "monitor"},
		{"too short duration", func(c *config.Config) { c.Audio.DurationSeconds = 0.01 }, "fewer than"},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

func TestAudioFingerprintChangesWithConstants(t *testing.T) {
	a := config.DefaultAudio()
	b := config.DefaultAudio()
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("expected identical constants to share a fingerprint")
	}
	b.HopLength = 256
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("expected hop length change to alter the fingerprint")
	}
}

func TestCreateSampleParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Audio.SampleRate != config.DefaultAudio().SampleRate {
		t.Fatalf("sample sample_rate %d disagrees with defaults", cfg.Audio.SampleRate)
	}
}
