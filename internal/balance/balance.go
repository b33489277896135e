// Package balance oversamples the minority class of a training partition.
// Validation samples must never pass through here.
package balance

import (
	"fmt"
	"math/rand/v2"

	"faultsense/internal/corpus"
	"faultsense/internal/dataset"
	"faultsense/internal/failures"
)

// Counts returns the number of normal and abnormal samples.
func Counts(samples []dataset.Sample) (normal, abnormal int) {
	for _, s := range samples {
		if s.Label == corpus.LabelAbnormal {
			abnormal++
		} else {
			normal++
		}
	}
	return normal, abnormal
}

// Oversample keeps every majority sample, draws minority samples with
// replacement until both classes have the majority count, and shuffles the
// result. The majority is chosen by count; on a tie the normal class is
// treated as the majority and every minority sample is drawn at random.
func Oversample(samples []dataset.Sample, rng *rand.Rand) ([]dataset.Sample, error) {
	var normal, abnormal []dataset.Sample
	for _, s := range samples {
		if s.Label == corpus.LabelAbnormal {
			abnormal = append(abnormal, s)
		} else {
			normal = append(normal, s)
		}
	}
	if len(normal) == 0 || len(abnormal) == 0 {
		return nil, failures.Wrap(failures.ErrConfiguration, "balance", "oversample",
			fmt.Sprintf("training partition needs both classes (normal=%d abnormal=%d)", len(normal), len(abnormal)), nil)
	}

	majority, minority := normal, abnormal
	if len(abnormal) > len(normal) {
		majority, minority = abnormal, normal
	}

	out := make([]dataset.Sample, 0, 2*len(majority))
	out = append(out, majority...)
	for range len(majority) {
		out = append(out, minority[rng.IntN(len(minority))])
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}
