package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"faultsense/internal/config"
	"faultsense/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	corpusRoot string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithEpochs(2))
	cfg.Logging.Level = "error"
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	var files []testsupport.CorpusFile
	for _, id := range []string{"id_00", "id_01", "id_02", "id_03"} {
		files = append(files,
			testsupport.CorpusFile{MachineType: "fan", MachineID: id, Folder: "normal", Count: 3, Frequency: 440},
			testsupport.CorpusFile{MachineType: "fan", MachineID: id, Folder: "abnormal", Count: 2, Frequency: 2500})
	}
	root := testsupport.WriteCorpus(t, filepath.Join(base, "corpus"), cfg.Audio.SampleRate, cfg.Audio.DurationSeconds, files)

	configPath := filepath.Join(base, "faultsense.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, corpusRoot: root, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}
