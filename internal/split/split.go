// Package split partitions a dataset into training and validation sides by
// whole groups, so no machine contributes samples to both.
package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"faultsense/internal/dataset"
	"faultsense/internal/failures"
)

// ErrEmptySide is returned when the fraction leaves one side without groups.
var ErrEmptySide = errors.New("split leaves a side without groups")

// Partition lists the group ids on each side, in shuffled order.
type Partition struct {
	TrainGroups      []string
	ValidationGroups []string
}

// Train returns the training samples.
func (p Partition) Train(ds dataset.Dataset) []dataset.Sample {
	return ds.Samples(p.TrainGroups)
}

// Validation returns the validation samples.
func (p Partition) Validation(ds dataset.Dataset) []dataset.Sample {
	return ds.Samples(p.ValidationGroups)
}

// Groups shuffles the sorted group ids with a PCG seeded from seed and puts
// the first ceil(fraction*n) groups on the validation side. The same seed
// and dataset always produce the same partition.
func Groups(ds dataset.Dataset, fraction float64, seed uint64) (Partition, error) {
	if fraction <= 0 || fraction >= 1 {
		return Partition{}, failures.Wrap(failures.ErrConfiguration, "split", "partition",
			fmt.Sprintf("validation fraction %g must be between 0 and 1", fraction), nil)
	}
	ids := ds.GroupIDs()
	if len(ids) < 2 {
		return Partition{}, failures.Wrap(failures.ErrConfiguration, "split", "partition",
			fmt.Sprintf("need at least 2 groups to split, found %d", len(ids)), nil)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	nVal := int(math.Ceil(fraction * float64(len(ids))))
	if nVal <= 0 || nVal >= len(ids) {
		return Partition{}, failures.Wrap(failures.ErrConfiguration, "split", "partition",
			fmt.Sprintf("fraction %g of %d groups puts %d on validation", fraction, len(ids), nVal), ErrEmptySide)
	}
	return Partition{
		ValidationGroups: slices.Clone(ids[:nVal]),
		TrainGroups:      slices.Clone(ids[nVal:]),
	}, nil
}
