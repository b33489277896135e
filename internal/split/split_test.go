package split_test

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"faultsense/internal/corpus"
	"faultsense/internal/dataset"
	"faultsense/internal/failures"
	"faultsense/internal/split"
)

func makeDataset(groups map[string][2]int) dataset.Dataset {
	ds := dataset.Dataset{}
	for id, counts := range groups {
		for label, n := range counts {
			for i := 0; i < n; i++ {
				ds.Add(dataset.Sample{
					Path:  fmt.Sprintf("%s/%d/%d.wav", id, label, i),
					Label: corpus.Label(label),
					Group: id,
				})
			}
		}
	}
	return ds
}

func groupsOf(samples []dataset.Sample) map[string]int {
	out := map[string]int{}
	for _, s := range samples {
		out[s.Group]++
	}
	return out
}

func TestGroupsNeverMixesMachines(t *testing.T) {
	ds := makeDataset(map[string][2]int{
		"id_01": {8, 2},
		"id_02": {8, 0},
	})
	for seed := uint64(0); seed < 20; seed++ {
		p, err := split.Groups(ds, 0.5, seed)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		train, val := groupsOf(p.Train(ds)), groupsOf(p.Validation(ds))
		if len(train) != 1 || len(val) != 1 {
			t.Fatalf("seed %d: expected one group per side, got %v / %v", seed, train, val)
		}
		for id, n := range train {
			if _, leaked := val[id]; leaked {
				t.Fatalf("seed %d: group %s on both sides", seed, id)
			}
			want := map[string]int{"id_01": 10, "id_02": 8}[id]
			if n != want {
				t.Fatalf("seed %d: group %s has %d training samples, want %d", seed, id, n, want)
			}
		}
	}
}

func TestGroupsDisjointAndComplete(t *testing.T) {
	groups := map[string][2]int{}
	for i := 0; i < 11; i++ {
		groups[fmt.Sprintf("m%02d", i)] = [2]int{3, 1}
	}
	ds := makeDataset(groups)

	p, err := split.Groups(ds, 0.2, 42)
	if err != nil {
		t.Fatalf("Groups: %v", err)
	}
	if len(p.ValidationGroups) != 3 {
		t.Fatalf("expected ceil(0.2*11)=3 validation groups, got %d", len(p.ValidationGroups))
	}
	all := append(slices.Clone(p.TrainGroups), p.ValidationGroups...)
	slices.Sort(all)
	if !slices.Equal(all, ds.GroupIDs()) {
		t.Fatalf("union %v != groups %v", all, ds.GroupIDs())
	}
	for _, id := range p.TrainGroups {
		if slices.Contains(p.ValidationGroups, id) {
			t.Fatalf("group %s on both sides", id)
		}
	}
}

func TestGroupsIsDeterministic(t *testing.T) {
	groups := map[string][2]int{}
	for i := 0; i < 9; i++ {
		groups[fmt.Sprintf("g%d", i)] = [2]int{1, 1}
	}
	ds := makeDataset(groups)
	a, _ := split.Groups(ds, 0.3, 7)
	b, _ := split.Groups(ds, 0.3, 7)
	if !slices.Equal(a.TrainGroups, b.TrainGroups) || !slices.Equal(a.ValidationGroups, b.ValidationGroups) {
		t.Fatalf("same seed produced %v and %v", a, b)
	}
}

func TestGroupsRejectsEmptySide(t *testing.T) {
	ds := makeDataset(map[string][2]int{"a": {1, 0}, "b": {1, 0}})
	_, err := split.Groups(ds, 0.9, 1)
	if !errors.Is(err, split.ErrEmptySide) || !errors.Is(err, failures.ErrConfiguration) {
		t.Fatalf("expected empty-side configuration error, got %v", err)
	}
}

func TestGroupsRequiresTwoGroups(t *testing.T) {
	ds := makeDataset(map[string][2]int{"only": {5, 5}})
	if _, err := split.Groups(ds, 0.5, 1); !errors.Is(err, failures.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
