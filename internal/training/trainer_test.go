package training_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"testing"

	"faultsense/internal/checkpoint"
	"faultsense/internal/config"
	"faultsense/internal/corpus"
	"faultsense/internal/dataset"
	"faultsense/internal/failures"
	"faultsense/internal/features"
	"faultsense/internal/history"
	"faultsense/internal/logging"
	"faultsense/internal/testsupport"
	"faultsense/internal/training"
)

var errCrash = errors.New("simulated crash")

func syntheticDataset(groups int, seed uint64) dataset.Dataset {
	rng := rand.New(rand.NewPCG(seed, 2))
	ds := dataset.Dataset{}
	for g := 0; g < groups; g++ {
		for i := 0; i < 10; i++ {
			label := corpus.LabelNormal
			if i < 3 {
				label = corpus.LabelAbnormal
			}
			t := features.Tensor{Mels: 4, Frames: 8, Channels: 1, Data: make([]float32, 32)}
			for j := range t.Data {
				t.Data[j] = float32(rng.NormFloat64() * 0.2)
			}
			if label == corpus.LabelAbnormal {
				for f := 0; f < 8; f++ {
					t.Data[8+f] += 1.5
				}
			}
			ds.Add(dataset.Sample{Path: fmt.Sprintf("g%d/%d.wav", g, i), Tensor: t, Label: label, Group: fmt.Sprintf("g%d", g)})
		}
	}
	return ds
}

func newConfig(t *testing.T, epochs int) *config.Config {
	cfg := testsupport.NewConfig(t, testsupport.WithModelShape(4, 8), testsupport.WithEpochs(epochs))
	cfg.Training.ValidationFraction = 0.25
	return cfg
}

func prepare(t *testing.T, cfg *config.Config) training.Prepared {
	t.Helper()
	prepared, err := training.Prepare(syntheticDataset(8, 1), cfg.Training, logging.NewNop())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return prepared
}

func newTrainer(t *testing.T, cfg *config.Config) (*training.Trainer, *history.Store) {
	t.Helper()
	store, err := checkpoint.Open(cfg.Paths.CheckpointDir, nil)
	if err != nil {
		t.Fatalf("checkpoint.Open: %v", err)
	}
	hist, err := history.Open(context.Background(), cfg.HistoryPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { _ = hist.Close() })
	return training.NewTrainer(cfg, store, hist, nil), hist
}

func TestPrepareBalancesTrainOnly(t *testing.T) {
	cfg := newConfig(t, 1)
	prepared := prepare(t, cfg)
	normal, abnormal := 0, 0
	for _, s := range prepared.Train {
		if s.Label == corpus.LabelAbnormal {
			abnormal++
		} else {
			normal++
		}
	}
	if normal != abnormal {
		t.Fatalf("training side not balanced: %d/%d", normal, abnormal)
	}
	if len(prepared.Partition.ValidationGroups) != 2 || len(prepared.Validation) != 20 {
		t.Fatalf("unexpected validation side: %v (%d samples)", prepared.Partition.ValidationGroups, len(prepared.Validation))
	}
	valAbnormal := 0
	for _, s := range prepared.Validation {
		if s.Label == corpus.LabelAbnormal {
			valAbnormal++
		}
	}
	if valAbnormal != 6 {
		t.Fatalf("validation distribution altered: %d abnormal", valAbnormal)
	}
}

func TestRunWritesArtifacts(t *testing.T) {
	cfg := newConfig(t, 3)
	trainer, hist := newTrainer(t, cfg)

	result, err := trainer.Run(context.Background(), prepare(t, cfg), training.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State.Epoch != 3 || !result.State.Completed {
		t.Fatalf("unexpected final state %+v", result.State)
	}
	for _, kind := range []checkpoint.Kind{checkpoint.KindBest, checkpoint.KindLatest, checkpoint.KindFinal} {
		if _, err := os.Stat(cfg.Paths.CheckpointDir + "/" + kind.FileName()); err != nil {
			t.Fatalf("missing %s snapshot: %v", kind, err)
		}
	}
	epochs, err := hist.Epochs(context.Background(), result.RunID)
	if err != nil || len(epochs) != 3 {
		t.Fatalf("expected 3 history epochs, got %d / %v", len(epochs), err)
	}
	run, err := hist.LatestRun(context.Background())
	if err != nil || run.Status != history.StatusCompleted {
		t.Fatalf("expected completed run, got %+v / %v", run, err)
	}
}

func TestResumeReproducesUninterruptedRun(t *testing.T) {
	straightCfg := newConfig(t, 4)
	straightTrainer, _ := newTrainer(t, straightCfg)
	straight, err := straightTrainer.Run(context.Background(), prepare(t, straightCfg), training.Options{})
	if err != nil {
		t.Fatalf("uninterrupted Run: %v", err)
	}

	cfg := newConfig(t, 4)
	trainer, hist := newTrainer(t, cfg)
	_, err = trainer.Run(context.Background(), prepare(t, cfg), training.Options{
		AfterEpoch: func(state checkpoint.State, _ checkpoint.EpochMetrics) error {
			if state.Epoch == 2 {
				return errCrash
			}
			return nil
		},
	})
	if !errors.Is(err, errCrash) {
		t.Fatalf("expected simulated crash, got %v", err)
	}

	resumed, err := trainer.Run(context.Background(), prepare(t, cfg), training.Options{Resume: true})
	if err != nil {
		t.Fatalf("resumed Run: %v", err)
	}
	if !resumed.Resumed || resumed.State.Epoch != 4 {
		t.Fatalf("unexpected resume result %+v", resumed)
	}
	if resumed.Model.Bias != straight.Model.Bias || resumed.Model.Step != straight.Model.Step {
		t.Fatalf("resumed trajectory diverged: bias %v vs %v", resumed.Model.Bias, straight.Model.Bias)
	}
	for i := range straight.Model.Weights {
		if resumed.Model.Weights[i] != straight.Model.Weights[i] {
			t.Fatalf("weight %d diverged: %v vs %v", i, resumed.Model.Weights[i], straight.Model.Weights[i])
		}
	}
	if *resumed.State.BestMetric != *straight.State.BestMetric || resumed.State.BestEpoch != straight.State.BestEpoch {
		t.Fatalf("best metric diverged: %v@%d vs %v@%d",
			*resumed.State.BestMetric, resumed.State.BestEpoch, *straight.State.BestMetric, straight.State.BestEpoch)
	}

	epochs, err := hist.Epochs(context.Background(), resumed.RunID)
	if err != nil || len(epochs) != 4 {
		t.Fatalf("expected 4 history epochs for resumed run, got %d / %v", len(epochs), err)
	}
}

func TestResumeWithoutCheckpointIsFatal(t *testing.T) {
	cfg := newConfig(t, 2)
	trainer, _ := newTrainer(t, cfg)
	_, err := trainer.Run(context.Background(), prepare(t, cfg), training.Options{Resume: true})
	if !errors.Is(err, checkpoint.ErrNoSnapshot) || failures.Classify(err) != failures.KindFatal {
		t.Fatalf("expected fatal no-snapshot error, got %v", err)
	}
}

func TestResumeFallsBackWhenAllowed(t *testing.T) {
	cfg := newConfig(t, 2)
	trainer, _ := newTrainer(t, cfg)
	result, err := trainer.Run(context.Background(), prepare(t, cfg), training.Options{Resume: true, AllowFresh: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.FreshFallback || result.Resumed || result.State.Epoch != 2 {
		t.Fatalf("unexpected fallback result %+v", result)
	}
}

func TestResumeRefusesInconsistentState(t *testing.T) {
	cfg := newConfig(t, 3)
	trainer, _ := newTrainer(t, cfg)
	_, err := trainer.Run(context.Background(), prepare(t, cfg), training.Options{
		AfterEpoch: func(checkpoint.State, checkpoint.EpochMetrics) error { return errCrash },
	})
	if !errors.Is(err, errCrash) {
		t.Fatalf("expected crash, got %v", err)
	}
	// Replace the latest snapshot behind the state file's back.
	if err := os.WriteFile(cfg.Paths.CheckpointDir+"/"+checkpoint.KindLatest.FileName(), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("corrupt snapshot: %v", err)
	}
	_, err = trainer.Run(context.Background(), prepare(t, cfg), training.Options{Resume: true, AllowFresh: true})
	if !errors.Is(err, checkpoint.ErrInconsistent) {
		t.Fatalf("expected inconsistency even with fallback allowed, got %v", err)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	cfg := newConfig(t, 2)
	trainer, _ := newTrainer(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := trainer.Run(ctx, prepare(t, cfg), training.Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestFreshRunRefusesExistingState(t *testing.T) {
	cfg := newConfig(t, 2)
	trainer, _ := newTrainer(t, cfg)
	first, err := trainer.Run(context.Background(), prepare(t, cfg), training.Options{})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	_, err = trainer.Run(context.Background(), prepare(t, cfg), training.Options{})
	if !errors.Is(err, failures.ErrConfiguration) {
		t.Fatalf("expected configuration error over existing state, got %v", err)
	}
	store, err := checkpoint.Open(cfg.Paths.CheckpointDir, nil)
	if err != nil {
		t.Fatalf("checkpoint.Open: %v", err)
	}
	state, _, err := store.LoadState()
	if err != nil || state.RunID != first.RunID || state.Epoch != 2 {
		t.Fatalf("expected state of first run to survive, got %+v / %v", state, err)
	}

	forced, err := trainer.Run(context.Background(), prepare(t, cfg), training.Options{Force: true})
	if err != nil {
		t.Fatalf("forced Run: %v", err)
	}
	if forced.RunID == first.RunID || forced.State.Epoch != 2 {
		t.Fatalf("expected a new completed run, got %+v", forced)
	}
}

func TestForceOverwritesUnreadableState(t *testing.T) {
	cfg := newConfig(t, 1)
	trainer, _ := newTrainer(t, cfg)
	if err := os.WriteFile(cfg.StatePath(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}
	if _, err := trainer.Run(context.Background(), prepare(t, cfg), training.Options{}); !errors.Is(err, failures.ErrInconsistent) {
		t.Fatalf("expected unreadable state to be refused, got %v", err)
	}
	if _, err := trainer.Run(context.Background(), prepare(t, cfg), training.Options{Force: true}); err != nil {
		t.Fatalf("forced Run: %v", err)
	}
}
