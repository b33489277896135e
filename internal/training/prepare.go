package training

import (
	"log/slog"
	"math/rand/v2"

	"faultsense/internal/balance"
	"faultsense/internal/config"
	"faultsense/internal/dataset"
	"faultsense/internal/logging"
	"faultsense/internal/split"
)

// balanceStream separates the balancer's random stream from the splitter's.
const balanceStream = 0xba1a2ce

// Prepared is a split dataset with a balanced training side.
type Prepared struct {
	Partition  split.Partition
	Train      []dataset.Sample
	Validation []dataset.Sample
}

// Prepare splits ds by group and oversamples the training side. Both steps
// are seeded from the training seed, so the same corpus always yields the
// same training set. Validation keeps its natural class distribution.
func Prepare(ds dataset.Dataset, cfg config.Training, logger *slog.Logger) (Prepared, error) {
	logger = logging.NewComponentLogger(logger, "training")

	partition, err := split.Groups(ds, cfg.ValidationFraction, cfg.Seed)
	if err != nil {
		return Prepared{}, err
	}
	train := partition.Train(ds)
	val := partition.Validation(ds)

	normal, abnormal := balance.Counts(train)
	balanced, err := balance.Oversample(train, rand.New(rand.NewPCG(cfg.Seed, balanceStream)))
	if err != nil {
		return Prepared{}, err
	}
	valNormal, valAbnormal := balance.Counts(val)

	logger.Info("dataset split",
		logging.Int("train_groups", len(partition.TrainGroups)),
		logging.Int("validation_groups", len(partition.ValidationGroups)),
		logging.Int("train_normal", normal),
		logging.Int("train_abnormal", abnormal),
		logging.Int("train_balanced", len(balanced)),
		logging.Int("validation_normal", valNormal),
		logging.Int("validation_abnormal", valAbnormal))

	return Prepared{Partition: partition, Train: balanced, Validation: val}, nil
}
