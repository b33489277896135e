package corpus_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"faultsense/internal/corpus"
	"faultsense/internal/failures"
	"faultsense/internal/logging"
	"faultsense/internal/testsupport"
)

func collect(t *testing.T, s *corpus.Scanner) ([]corpus.Entry, []error) {
	t.Helper()
	var entries []corpus.Entry
	var errs []error
	for e, err := range s.Entries() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, errs
}

func TestScannerLabelsAndGroups(t *testing.T) {
	root := testsupport.WriteCorpus(t, t.TempDir(), 8000, 0.1, []testsupport.CorpusFile{
		{MachineType: "fan", MachineID: "id_01", Folder: "normal", Count: 3},
		{MachineType: "fan", MachineID: "id_01", Folder: "Abnormal", Count: 2},
		{MachineType: "fan", MachineID: "id_02", Folder: "bearing_fault", Count: 1},
		{MachineType: "fan", MachineID: "id_02", Folder: "unsorted", Count: 4},
	})
	testsupport.WriteFile(t, filepath.Join(root, "fan", "id_01", "normal", "notes.txt"), 10)

	scanner, err := corpus.NewScanner([]string{root}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	entries, errs := collect(t, scanner)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	var tally corpus.Tally
	for _, e := range entries {
		tally.Add(e)
	}
	if got := tally.Groups(); len(got) != 2 || got[0] != "id_01" || got[1] != "id_02" {
		t.Fatalf("unexpected groups %v", got)
	}
	if tally.Count("id_01", corpus.LabelNormal) != 3 || tally.Count("id_01", corpus.LabelAbnormal) != 2 {
		t.Fatalf("unexpected id_01 counts")
	}
	if tally.Count("id_02", corpus.LabelAbnormal) != 1 || tally.Count("id_02", corpus.LabelNormal) != 0 {
		t.Fatalf("unexpected id_02 counts; ambiguous folder must be skipped")
	}
}

func TestScannerIsSinglePass(t *testing.T) {
	root := testsupport.WriteCorpus(t, t.TempDir(), 8000, 0.1, []testsupport.CorpusFile{
		{MachineType: "pump", MachineID: "id_00", Folder: "normal", Count: 2},
	})
	scanner, err := corpus.NewScanner([]string{root}, nil)
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	if entries, _ := collect(t, scanner); len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	entries, errs := collect(t, scanner)
	if len(entries) != 0 || len(errs) != 1 || !errors.Is(errs[0], corpus.ErrScannerConsumed) {
		t.Fatalf("expected single consumed error, got %v / %v", entries, errs)
	}
}

func TestScannerPrefixesGroupsAcrossRoots(t *testing.T) {
	layout := []testsupport.CorpusFile{{MachineType: "valve", MachineID: "id_00", Folder: "normal", Count: 1}}
	rootA := testsupport.WriteCorpus(t, filepath.Join(t.TempDir(), "a"), 8000, 0.1, layout)
	rootB := testsupport.WriteCorpus(t, filepath.Join(t.TempDir(), "b"), 8000, 0.1, layout)

	scanner, err := corpus.NewScanner([]string{rootA, rootB}, nil)
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	entries, errs := collect(t, scanner)
	if len(errs) != 0 || len(entries) != 2 {
		t.Fatalf("unexpected scan result %v / %v", entries, errs)
	}
	if entries[0].Group == entries[1].Group {
		t.Fatalf("expected distinct groups, both %q", entries[0].Group)
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Group, "_id_00") || e.Group != corpus.RootToken(e.Root)+"_id_00" {
			t.Fatalf("unexpected group %q for root %q", e.Group, e.Root)
		}
	}

	again, _ := corpus.NewScanner([]string{rootA, rootB}, nil)
	second, _ := collect(t, again)
	if second[0].Group != entries[0].Group {
		t.Fatal("expected root tokens to be stable across scans")
	}
}

func TestScannerMissingRootIsFatal(t *testing.T) {
	scanner, err := corpus.NewScanner([]string{filepath.Join(t.TempDir(), "missing")}, nil)
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	_, errs := collect(t, scanner)
	if len(errs) != 1 || failures.Classify(errs[0]) != failures.KindFatal {
		t.Fatalf("expected one fatal error, got %v", errs)
	}
}

func TestNewScannerRequiresRoots(t *testing.T) {
	if _, err := corpus.NewScanner(nil, nil); !errors.Is(err, failures.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
