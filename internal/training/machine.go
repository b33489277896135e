package training

import (
	"errors"
	"fmt"
	"time"

	"faultsense/internal/checkpoint"
)

// Phase is a training lifecycle phase.
type Phase int

const (
	PhaseFresh Phase = iota
	PhaseResuming
	PhaseRunning
	PhaseCheckpointed
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseFresh:
		return "fresh"
	case PhaseResuming:
		return "resuming"
	case PhaseRunning:
		return "running"
	case PhaseCheckpointed:
		return "checkpointed"
	case PhaseCompleted:
		return "completed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Monitored metrics.
const (
	MonitorValAccuracy = "val_accuracy"
	MonitorValLoss     = "val_loss"
)

// ErrPhase is returned for calls that are invalid in the current phase.
var ErrPhase = errors.New("invalid training phase")

// Decision reports what AdvanceEpoch decided for an epoch.
type Decision struct {
	Epoch    int
	Improved bool
	Done     bool
}

// Machine tracks epoch progression. It never performs I/O.
type Machine struct {
	phase   Phase
	total   int
	state   checkpoint.State
	pending *checkpoint.State
	now     func() time.Time
}

// NewMachine starts a fresh run.
func NewMachine(runID, monitor string, totalEpochs int, latestPath, bestPath string) (*Machine, error) {
	if err := validateMonitor(monitor); err != nil {
		return nil, err
	}
	if totalEpochs <= 0 {
		return nil, fmt.Errorf("total epochs must be positive, got %d", totalEpochs)
	}
	return &Machine{
		phase: PhaseFresh,
		total: totalEpochs,
		state: checkpoint.State{
			RunID:            runID,
			Monitor:          monitor,
			LatestCheckpoint: latestPath,
			BestCheckpoint:   bestPath,
		},
		now: time.Now,
	}, nil
}

// ResumeMachine restores a machine from persisted state.
func ResumeMachine(state checkpoint.State, totalEpochs int) (*Machine, error) {
	if err := validateMonitor(state.Monitor); err != nil {
		return nil, err
	}
	if state.Epoch < 0 || state.Epoch > totalEpochs {
		return nil, fmt.Errorf("%w: persisted epoch %d outside 0..%d", ErrPhase, state.Epoch, totalEpochs)
	}
	m := &Machine{phase: PhaseResuming, total: totalEpochs, state: state, now: time.Now}
	if state.Epoch == totalEpochs {
		m.phase = PhaseCompleted
		m.state.Completed = true
	}
	return m, nil
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// State returns the last committed state.
func (m *Machine) State() checkpoint.State { return m.state }

// NextEpoch returns the 1-based index of the epoch to run next.
func (m *Machine) NextEpoch() int { return m.state.Epoch + 1 }

// Start moves a fresh or resuming machine to Running.
func (m *Machine) Start() error {
	switch m.phase {
	case PhaseFresh, PhaseResuming:
		m.phase = PhaseRunning
		return nil
	case PhaseCompleted:
		return fmt.Errorf("%w: run %s already completed %d epochs", ErrPhase, m.state.RunID, m.state.Epoch)
	default:
		return fmt.Errorf("%w: start from %s", ErrPhase, m.phase)
	}
}

// AdvanceEpoch computes the state after the next epoch. The machine does not
// change until Commit is called with the returned state.
func (m *Machine) AdvanceEpoch(metrics checkpoint.EpochMetrics) (checkpoint.State, Decision, error) {
	if m.phase != PhaseRunning && m.phase != PhaseCheckpointed {
		return checkpoint.State{}, Decision{}, fmt.Errorf("%w: advance from %s", ErrPhase, m.phase)
	}
	if m.pending != nil {
		return checkpoint.State{}, Decision{}, fmt.Errorf("%w: epoch %d not committed", ErrPhase, m.pending.Epoch)
	}

	next := m.state
	next.Epoch = m.state.Epoch + 1
	next.UpdatedAt = m.now().UTC()
	recorded := metrics
	next.LastMetrics = &recorded

	value := monitoredValue(next.Monitor, metrics)
	improved := m.state.BestMetric == nil || better(next.Monitor, value, *m.state.BestMetric)
	if improved {
		next.BestMetric = &value
		next.BestEpoch = next.Epoch
	}
	done := next.Epoch >= m.total
	next.Completed = done

	m.pending = &next
	return next, Decision{Epoch: next.Epoch, Improved: improved, Done: done}, nil
}

// Commit records that state has been persisted. It must be the state from
// the last AdvanceEpoch, possibly with digests filled in.
func (m *Machine) Commit(state checkpoint.State) error {
	if m.pending == nil {
		return fmt.Errorf("%w: nothing to commit", ErrPhase)
	}
	if state.Epoch != m.pending.Epoch || state.RunID != m.pending.RunID {
		return fmt.Errorf("%w: commit epoch %d of %s, pending %d of %s",
			ErrPhase, state.Epoch, state.RunID, m.pending.Epoch, m.pending.RunID)
	}
	m.state = state
	m.pending = nil
	if state.Completed {
		m.phase = PhaseCompleted
	} else {
		m.phase = PhaseCheckpointed
	}
	return nil
}

func validateMonitor(monitor string) error {
	switch monitor {
	case MonitorValAccuracy, MonitorValLoss:
		return nil
	default:
		return fmt.Errorf("unsupported monitor %q", monitor)
	}
}

func monitoredValue(monitor string, metrics checkpoint.EpochMetrics) float64 {
	if monitor == MonitorValLoss {
		return metrics.Validation.Loss
	}
	return metrics.Validation.Accuracy
}

func better(monitor string, candidate, best float64) bool {
	if monitor == MonitorValLoss {
		return candidate < best
	}
	return candidate > best
}
