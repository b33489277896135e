package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"faultsense/internal/export"
)

func TestTrainPredictExportVerify(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"train", "--dataset", env.corpusRoot}, env.configPath, "")
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	requireContains(t, out, "Final model")
	if _, err := os.Stat(env.cfg.BestModelPath()); err != nil {
		t.Fatalf("expected best model: %v", err)
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath, "")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Run ")
	requireContains(t, out, "%")

	sample := filepath.Join(env.corpusRoot, "fan", "id_00", "abnormal", "000.wav")
	out, _, err = runCLI(t, []string{"predict", sample}, env.configPath, "")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	requireContains(t, out, "%)")

	artifactPath := filepath.Join(env.baseDir, "model.fsq")
	if _, _, err := runCLI(t, []string{"export", "--out", artifactPath}, env.configPath, ""); err != nil {
		t.Fatalf("export: %v", err)
	}
	out, _, err = runCLI(t, []string{"verify", artifactPath}, env.configPath, "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	requireContains(t, out, "Artifact verified")
}

func TestResumeWithoutCheckpointFails(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"train", "--dataset", env.corpusRoot, "--resume"}, env.configPath, "")
	if err == nil {
		t.Fatal("expected resume without checkpoint to fail")
	}
}

func TestPredictWithoutModelIsDemo(t *testing.T) {
	env := setupCLITestEnv(t)
	sample := filepath.Join(env.corpusRoot, "fan", "id_01", "normal", "000.wav")
	out, _, err := runCLI(t, []string{"predict", sample}, env.configPath, "")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	requireContains(t, out, "demo")
}

func TestPredictInteractiveLoop(t *testing.T) {
	env := setupCLITestEnv(t)
	sample := filepath.Join(env.corpusRoot, "fan", "id_02", "normal", "001.wav")
	missing := filepath.Join(env.baseDir, "missing.wav")
	out, _, err := runCLI(t, []string{"predict"}, env.configPath, sample+"\n\n"+missing+"\nquit\n")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	requireContains(t, out, "No trained model loaded")
	requireContains(t, out, sample+": demo")
	requireContains(t, out, "missing.wav: unreadable audio")
}

func TestScanCountsGroups(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"scan", "--dataset", env.corpusRoot}, env.configPath, "")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "id_03")
	requireContains(t, out, "total")
}

func TestFeaturesReportsShape(t *testing.T) {
	env := setupCLITestEnv(t)
	sample := filepath.Join(env.corpusRoot, "fan", "id_00", "normal", "000.wav")
	out, _, err := runCLI(t, []string{"features", sample}, env.configPath, "")
	if err != nil {
		t.Fatalf("features: %v", err)
	}
	requireContains(t, out, "32 x 61 x 1")
	requireContains(t, out, "resized: yes")
}

func TestVerifyRejectsMissingArtifact(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"verify", filepath.Join(env.baseDir, "none.fsq")}, env.configPath, "")
	if err == nil || errors.Is(err, export.ErrMismatch) {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"history"}, env.configPath, "")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No training runs recorded")
}

func TestTrainRequiresForceOverExistingRun(t *testing.T) {
	env := setupCLITestEnv(t)
	args := []string{"train", "--dataset", env.corpusRoot}
	if _, _, err := runCLI(t, args, env.configPath, ""); err != nil {
		t.Fatalf("first train: %v", err)
	}
	if _, _, err := runCLI(t, args, env.configPath, ""); err == nil {
		t.Fatal("expected second fresh train to be refused")
	}
	out, _, err := runCLI(t, append(args, "--force"), env.configPath, "")
	if err != nil {
		t.Fatalf("forced train: %v", err)
	}
	requireContains(t, out, "Final model")
}
