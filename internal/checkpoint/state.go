package checkpoint

import (
	"time"

	"faultsense/internal/model"
)

// State is the persisted epoch-state file. Epoch is the number of completed
// epochs; a resumed run continues with epoch Epoch+1.
type State struct {
	RunID            string        `json:"run_id"`
	Epoch            int           `json:"epoch"`
	LatestCheckpoint string        `json:"latest_checkpoint"`
	LatestDigest     string        `json:"latest_digest"`
	BestCheckpoint   string        `json:"best_checkpoint,omitempty"`
	BestDigest       string        `json:"best_digest,omitempty"`
	BestEpoch        int           `json:"best_epoch,omitempty"`
	Monitor          string        `json:"monitor"`
	BestMetric       *float64      `json:"best_metric,omitempty"`
	Completed        bool          `json:"completed"`
	UpdatedAt        time.Time     `json:"updated_at"`
	LastMetrics      *EpochMetrics `json:"last_metrics,omitempty"`
}

// EpochMetrics pairs training and validation metrics for one epoch.
type EpochMetrics struct {
	Train      model.Metrics `json:"train" msgpack:"train"`
	Validation model.Metrics `json:"validation" msgpack:"validation"`
}

// Snapshot is the content of a model snapshot file.
type Snapshot struct {
	RunID   string       `msgpack:"run_id"`
	Epoch   int          `msgpack:"epoch"`
	Metrics EpochMetrics `msgpack:"metrics"`
	Model   *model.Model `msgpack:"model"`
	SavedAt time.Time    `msgpack:"saved_at"`
}

// Kind names a snapshot slot.
type Kind string

const (
	KindBest   Kind = "best"
	KindLatest Kind = "latest"
	KindFinal  Kind = "final"
)

// FileName returns the snapshot file name for the slot.
func (k Kind) FileName() string {
	return string(k) + "_model.msgpack"
}
