package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"faultsense/internal/checkpoint"
	"faultsense/internal/config"
	"faultsense/internal/failures"
	"faultsense/internal/history"
	"faultsense/internal/logging"
	"faultsense/internal/model"
)

// Options controls a training run.
type Options struct {
	Resume     bool
	AllowFresh bool
	// Force starts a fresh run over an existing epoch-state file. Without it
	// a fresh run refuses to roll an earlier run back.
	Force bool
	// AfterEpoch runs after each epoch is committed. A non-nil error stops
	// the run with that error; the committed epoch stays resumable.
	AfterEpoch func(checkpoint.State, checkpoint.EpochMetrics) error
}

// Result describes a finished run.
type Result struct {
	RunID         string
	State         checkpoint.State
	Model         *model.Model
	Resumed       bool
	FreshFallback bool
	FinalPath     string
}

// Trainer runs epochs against a checkpoint store.
type Trainer struct {
	cfg     *config.Config
	store   *checkpoint.Store
	history *history.Store
	logger  *slog.Logger
}

// NewTrainer wires a trainer. history may be nil.
func NewTrainer(cfg *config.Config, store *checkpoint.Store, hist *history.Store, logger *slog.Logger) *Trainer {
	return &Trainer{
		cfg:     cfg,
		store:   store,
		history: hist,
		logger:  logging.NewComponentLogger(logger, "training"),
	}
}

// Run trains until the configured epoch count, resuming when requested.
func (t *Trainer) Run(ctx context.Context, prepared Prepared, opts Options) (Result, error) {
	if len(prepared.Train) == 0 || len(prepared.Validation) == 0 {
		return Result{}, failures.Wrap(failures.ErrConfiguration, "training", "run", "empty training or validation set", nil)
	}
	if err := t.store.Lock(); err != nil {
		return Result{}, err
	}
	defer func() {
		if err := t.store.Unlock(); err != nil {
			t.logger.Warn("failed to release checkpoint lock", logging.Error(err))
		}
	}()

	machine, m, result, err := t.initialize(opts)
	if err != nil {
		return Result{}, err
	}
	if err := machine.Start(); err != nil {
		return Result{}, failures.Wrap(failures.ErrConfiguration, "training", "start", "", err)
	}
	runLogger := t.logger.With(logging.String(logging.FieldRunID, result.RunID))
	t.startHistory(ctx, result.RunID, machine.State().Monitor, runLogger)

	runLogger.Info("training started",
		logging.Int("first_epoch", machine.NextEpoch()),
		logging.Int("epochs", t.cfg.Training.Epochs),
		logging.Int("train_samples", len(prepared.Train)),
		logging.Int("validation_samples", len(prepared.Validation)),
		logging.Any("validation_groups", prepared.Partition.ValidationGroups),
		logging.Bool("resumed", result.Resumed))

	for machine.Phase() != PhaseCompleted {
		if err := ctx.Err(); err != nil {
			t.finishHistory(result.RunID, history.StatusFailed, runLogger)
			return Result{}, err
		}
		state, metrics, err := t.runEpoch(machine, m, prepared, runLogger)
		if err != nil {
			t.finishHistory(result.RunID, history.StatusFailed, runLogger)
			return Result{}, err
		}
		t.recordHistory(ctx, state, metrics, runLogger)
		if opts.AfterEpoch != nil {
			if err := opts.AfterEpoch(state, metrics); err != nil {
				t.finishHistory(result.RunID, history.StatusFailed, runLogger)
				return Result{}, err
			}
		}
	}

	final := machine.State()
	finalPath, _, err := t.store.WriteSnapshot(checkpoint.KindFinal, checkpoint.Snapshot{
		RunID:   final.RunID,
		Epoch:   final.Epoch,
		Model:   m,
		SavedAt: time.Now().UTC(),
	})
	if err != nil {
		return Result{}, err
	}
	t.finishHistory(result.RunID, history.StatusCompleted, runLogger)

	attrs := []logging.Attr{
		logging.Int(logging.FieldEpoch, final.Epoch),
		logging.String("final_model", finalPath),
	}
	if final.BestMetric != nil {
		attrs = append(attrs, logging.Float64("best_"+final.Monitor, *final.BestMetric), logging.Int("best_epoch", final.BestEpoch))
	}
	runLogger.Info("training completed", logging.Args(attrs...)...)

	result.State = final
	result.Model = m
	result.FinalPath = finalPath
	return result, nil
}

func (t *Trainer) initialize(opts Options) (*Machine, *model.Model, Result, error) {
	latest, best := t.store.Path(checkpoint.KindLatest), t.store.Path(checkpoint.KindBest)

	if opts.Resume {
		state, snap, err := t.store.Resume()
		switch {
		case err == nil:
			machine, err := ResumeMachine(state, t.cfg.Training.Epochs)
			if err != nil {
				return nil, nil, Result{}, failures.Wrap(failures.ErrInconsistent, "training", "resume", "", err)
			}
			if snap.Model.Mels != t.cfg.Model.InputMels || snap.Model.Frames != t.cfg.Model.InputFrames {
				return nil, nil, Result{}, failures.Wrap(failures.ErrConfiguration, "training", "resume",
					fmt.Sprintf("snapshot shape %dx%d differs from configured %dx%d",
						snap.Model.Mels, snap.Model.Frames, t.cfg.Model.InputMels, t.cfg.Model.InputFrames), nil)
			}
			t.logger.Info("resuming training",
				logging.String(logging.FieldRunID, state.RunID),
				logging.Int(logging.FieldEpoch, state.Epoch),
				logging.String(logging.FieldPath, state.LatestCheckpoint))
			return machine, snap.Model, Result{RunID: state.RunID, Resumed: true}, nil
		case errors.Is(err, checkpoint.ErrNoSnapshot) && opts.AllowFresh:
			logging.WarnWithContext(t.logger, "resume requested but no checkpoint found; starting fresh", "resume_fresh_fallback",
				logging.String(logging.FieldPath, t.store.Dir()),
				logging.String(logging.FieldErrorHint, "check training.checkpoint_dir if a previous run was expected"),
				logging.String(logging.FieldImpact, "training restarts from epoch 1"))
			machine, m, result, err := t.fresh(latest, best)
			result.FreshFallback = true
			return machine, m, result, err
		case errors.Is(err, failures.ErrInconsistent):
			logging.ErrorWithContext(t.logger, "checkpoint state is inconsistent; refusing to resume", "resume_inconsistent",
				logging.String(logging.FieldPath, t.store.Dir()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect training_state.json and the snapshots, or start over with --force"))
			return nil, nil, Result{}, err
		default:
			return nil, nil, Result{}, err
		}
	}

	state, exists, err := t.store.LoadState()
	switch {
	case err != nil && !opts.Force:
		return nil, nil, Result{}, err
	case err != nil:
		exists = true
	}
	if exists {
		if !opts.Force {
			return nil, nil, Result{}, failures.Wrap(failures.ErrConfiguration, "training", "init",
				fmt.Sprintf("training state for run %s at epoch %d exists in %s; pass --resume to continue or --force to start over",
					state.RunID, state.Epoch, t.store.Dir()), nil)
		}
		logging.WarnWithContext(t.logger, "existing training state will be overwritten", "fresh_overwrites_state",
			logging.String(logging.FieldPath, t.store.StatePath()),
			logging.String(logging.FieldRunID, state.RunID),
			logging.Int(logging.FieldEpoch, state.Epoch),
			logging.String(logging.FieldErrorHint, "pass --resume to continue the previous run"),
			logging.String(logging.FieldImpact, "previous run can no longer be resumed"))
	}
	return t.fresh(latest, best)
}

func (t *Trainer) fresh(latest, best string) (*Machine, *model.Model, Result, error) {
	runID := uuid.NewString()
	machine, err := NewMachine(runID, t.cfg.Training.Monitor, t.cfg.Training.Epochs, latest, best)
	if err != nil {
		return nil, nil, Result{}, failures.Wrap(failures.ErrConfiguration, "training", "init", "", err)
	}
	m := model.New(t.cfg.Model.InputMels, t.cfg.Model.InputFrames, t.cfg.Training.LearningRate)
	return machine, m, Result{RunID: runID}, nil
}

// EpochRand returns the shuffling source for an epoch. It depends only on
// the seed and the epoch index so resumed runs replay the same order.
func EpochRand(seed uint64, epoch int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(epoch)))
}

func (t *Trainer) runEpoch(machine *Machine, m *model.Model, prepared Prepared, logger *slog.Logger) (checkpoint.State, checkpoint.EpochMetrics, error) {
	epoch := machine.NextEpoch()
	started := time.Now()
	trainMetrics, err := m.TrainEpoch(prepared.Train, t.cfg.Training.BatchSize, EpochRand(t.cfg.Training.Seed, epoch))
	if err != nil {
		return checkpoint.State{}, checkpoint.EpochMetrics{}, fmt.Errorf("epoch %d: %w", epoch, err)
	}
	valMetrics, err := m.Evaluate(prepared.Validation)
	if err != nil {
		return checkpoint.State{}, checkpoint.EpochMetrics{}, fmt.Errorf("epoch %d: %w", epoch, err)
	}
	metrics := checkpoint.EpochMetrics{Train: trainMetrics, Validation: valMetrics}

	state, decision, err := machine.AdvanceEpoch(metrics)
	if err != nil {
		return checkpoint.State{}, checkpoint.EpochMetrics{}, err
	}

	snap := checkpoint.Snapshot{RunID: state.RunID, Epoch: state.Epoch, Metrics: metrics, Model: m, SavedAt: state.UpdatedAt}
	if decision.Improved {
		path, digest, err := t.store.WriteSnapshot(checkpoint.KindBest, snap)
		if err != nil {
			return checkpoint.State{}, checkpoint.EpochMetrics{}, err
		}
		state.BestCheckpoint, state.BestDigest = path, digest
	}
	path, digest, err := t.store.WriteSnapshot(checkpoint.KindLatest, snap)
	if err != nil {
		return checkpoint.State{}, checkpoint.EpochMetrics{}, err
	}
	state.LatestCheckpoint, state.LatestDigest = path, digest

	if err := t.store.SaveState(state); err != nil {
		return checkpoint.State{}, checkpoint.EpochMetrics{}, err
	}
	if err := machine.Commit(state); err != nil {
		return checkpoint.State{}, checkpoint.EpochMetrics{}, err
	}

	logger.Info("epoch completed",
		logging.Int(logging.FieldEpoch, epoch),
		logging.Float64("loss", trainMetrics.Loss),
		logging.Float64("accuracy", trainMetrics.Accuracy),
		logging.Float64("val_loss", valMetrics.Loss),
		logging.Float64("val_accuracy", valMetrics.Accuracy),
		logging.Bool("improved", decision.Improved),
		logging.Duration("elapsed", time.Since(started)))
	return state, metrics, nil
}

func (t *Trainer) startHistory(ctx context.Context, runID, monitor string, logger *slog.Logger) {
	if t.history == nil {
		return
	}
	err := t.history.StartRun(ctx, history.Run{
		ID:            runID,
		StartedAt:     time.Now(),
		DatasetRoots:  t.cfg.Paths.DatasetRoots,
		Seed:          t.cfg.Training.Seed,
		EpochsPlanned: t.cfg.Training.Epochs,
		Monitor:       monitor,
	})
	if err != nil {
		t.historyWarning(logger, err)
	}
}

func (t *Trainer) recordHistory(ctx context.Context, state checkpoint.State, metrics checkpoint.EpochMetrics, logger *slog.Logger) {
	if t.history == nil {
		return
	}
	err := t.history.RecordEpoch(ctx, history.Epoch{
		RunID:          state.RunID,
		Epoch:          state.Epoch,
		TrainLoss:      metrics.Train.Loss,
		TrainAccuracy:  metrics.Train.Accuracy,
		ValLoss:        metrics.Validation.Loss,
		ValAccuracy:    metrics.Validation.Accuracy,
		Improved:       state.BestEpoch == state.Epoch,
		SnapshotDigest: state.LatestDigest,
		RecordedAt:     state.UpdatedAt,
	})
	if err != nil {
		t.historyWarning(logger, err)
	}
}

func (t *Trainer) finishHistory(runID, status string, logger *slog.Logger) {
	if t.history == nil {
		return
	}
	if err := t.history.FinishRun(context.Background(), runID, status, time.Now()); err != nil {
		t.historyWarning(logger, err)
	}
}

func (t *Trainer) historyWarning(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "run history update failed", "history_write",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "delete history.db if the schema is outdated"),
		logging.String(logging.FieldImpact, "the history command will miss this run"))
}
