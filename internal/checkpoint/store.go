package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/vmihailenco/msgpack/v5"

	"faultsense/internal/failures"
	"faultsense/internal/fileutil"
	"faultsense/internal/logging"
	"faultsense/internal/model"
)

const (
	stateFileName = "training_state.json"
	lockFileName  = "train.lock"
)

var (
	// ErrLocked is returned when another process holds the checkpoint lock.
	ErrLocked = errors.New("checkpoint directory locked by another training run")
	// ErrNoSnapshot is returned by Resume when there is nothing to resume.
	ErrNoSnapshot = errors.New("no checkpoint to resume from")
	// ErrInconsistent is returned by Resume when the state file and the
	// latest snapshot disagree.
	ErrInconsistent = errors.New("checkpoint state does not match snapshot")
)

// Store reads and writes one checkpoint directory.
type Store struct {
	dir    string
	lock   *flock.Flock
	logger *slog.Logger
}

// Open creates the directory if needed. The store is read-only until Lock
// succeeds.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &Store{
		dir:    dir,
		lock:   flock.New(filepath.Join(dir, lockFileName)),
		logger: logging.NewComponentLogger(logger, "checkpoint"),
	}, nil
}

// Dir returns the checkpoint directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the location of a snapshot slot.
func (s *Store) Path(kind Kind) string {
	return filepath.Join(s.dir, kind.FileName())
}

// StatePath returns the location of the epoch-state file.
func (s *Store) StatePath() string {
	return filepath.Join(s.dir, stateFileName)
}

// Lock acquires the single-writer lock without blocking.
func (s *Store) Lock() error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire checkpoint lock: %w", err)
	}
	if !ok {
		return failures.Wrap(failures.ErrConfiguration, "checkpoint", "lock", s.lock.Path(), ErrLocked)
	}
	return nil
}

// Unlock releases the writer lock.
func (s *Store) Unlock() error {
	if !s.lock.Locked() {
		return nil
	}
	return s.lock.Unlock()
}

func (s *Store) requireLock() error {
	if !s.lock.Locked() {
		return fmt.Errorf("checkpoint store: write without holding %s", s.lock.Path())
	}
	return nil
}

// WriteSnapshot durably replaces a snapshot slot and returns its path and
// SHA-256 digest.
func (s *Store) WriteSnapshot(kind Kind, snap Snapshot) (string, string, error) {
	if err := s.requireLock(); err != nil {
		return "", "", err
	}
	if snap.Model == nil {
		return "", "", fmt.Errorf("write %s snapshot: no model", kind)
	}
	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return "", "", fmt.Errorf("encode %s snapshot: %w", kind, err)
	}
	path := s.Path(kind)
	digest, err := fileutil.WriteAtomic(path, data, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("write %s snapshot: %w", kind, err)
	}
	s.logger.Debug("snapshot written",
		logging.String("kind", string(kind)),
		logging.Int(logging.FieldEpoch, snap.Epoch),
		logging.String(logging.FieldPath, path))
	return path, digest, nil
}

// ReadSnapshot decodes a snapshot file and returns it with the file digest.
func ReadSnapshot(path string) (Snapshot, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, "", err
	}
	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, "", fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if snap.Model == nil {
		return Snapshot{}, "", fmt.Errorf("snapshot %s has no model", path)
	}
	if err := snap.Model.Validate(); err != nil {
		return Snapshot{}, "", fmt.Errorf("snapshot %s: %w", path, err)
	}
	return snap, fileutil.Digest(data), nil
}

// LoadModel reads only the model out of a snapshot file.
func LoadModel(path string) (*model.Model, error) {
	snap, _, err := ReadSnapshot(path)
	if err != nil {
		return nil, err
	}
	return snap.Model, nil
}

// SaveState atomically overwrites the epoch-state file.
func (s *Store) SaveState(state State) error {
	if err := s.requireLock(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode training state: %w", err)
	}
	if _, err := fileutil.WriteAtomic(s.StatePath(), data, 0o644); err != nil {
		return fmt.Errorf("write training state: %w", err)
	}
	return nil
}

// LoadState reads the epoch-state file. The boolean is false when the file
// does not exist.
func (s *Store) LoadState() (State, bool, error) {
	data, err := os.ReadFile(s.StatePath())
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("read training state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, false, failures.Wrap(failures.ErrInconsistent, "checkpoint", "load state", s.StatePath(), err)
	}
	return state, true, nil
}

// Resume loads the state file and the latest snapshot and checks that they
// agree. A missing state file or snapshot returns ErrNoSnapshot; any
// disagreement returns ErrInconsistent and must not be auto-corrected.
func (s *Store) Resume() (State, Snapshot, error) {
	state, ok, err := s.LoadState()
	if err != nil {
		return State{}, Snapshot{}, err
	}
	if !ok {
		return State{}, Snapshot{}, failures.Wrap(failures.ErrConfiguration, "checkpoint", "resume",
			"no training state in "+s.dir, ErrNoSnapshot)
	}

	latest := state.LatestCheckpoint
	if latest == "" {
		latest = s.Path(KindLatest)
	}
	snap, digest, err := ReadSnapshot(latest)
	if errors.Is(err, fs.ErrNotExist) {
		if state.Epoch > 0 {
			return State{}, Snapshot{}, s.inconsistent(fmt.Sprintf("state records epoch %d but %s is missing", state.Epoch, latest))
		}
		return State{}, Snapshot{}, failures.Wrap(failures.ErrConfiguration, "checkpoint", "resume",
			"no latest snapshot in "+s.dir, ErrNoSnapshot)
	}
	if err != nil {
		return State{}, Snapshot{}, s.inconsistent(err.Error())
	}

	switch {
	case snap.Epoch != state.Epoch:
		return State{}, Snapshot{}, s.inconsistent(fmt.Sprintf("state epoch %d, snapshot epoch %d", state.Epoch, snap.Epoch))
	case state.LatestDigest != "" && digest != state.LatestDigest:
		return State{}, Snapshot{}, s.inconsistent(fmt.Sprintf("snapshot digest %s, state expects %s", digest, state.LatestDigest))
	case state.RunID != "" && snap.RunID != state.RunID:
		return State{}, Snapshot{}, s.inconsistent(fmt.Sprintf("snapshot run %s, state run %s", snap.RunID, state.RunID))
	}
	return state, snap, nil
}

func (s *Store) inconsistent(detail string) error {
	return failures.Wrap(failures.ErrInconsistent, "checkpoint", "resume",
		detail+" (inspect or delete "+s.StatePath()+")", ErrInconsistent)
}
