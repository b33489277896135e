package corpus_test

import (
	"path/filepath"
	"testing"

	"faultsense/internal/corpus"
)

func TestClassify(t *testing.T) {
	cases := map[string]corpus.Class{
		"normal":         corpus.Normal,
		"NORMAL":         corpus.Normal,
		"Normal":         corpus.Normal,
		"abnormal":       corpus.Abnormal,
		"AbNormal":       corpus.Abnormal,
		"bearing_fault":  corpus.Abnormal,
		"FAULTY":         corpus.Abnormal,
		"normal_2":       corpus.Ambiguous,
		"misc":           corpus.Ambiguous,
		"":               corpus.Ambiguous,
		"not normal-ish": corpus.Ambiguous,
	}
	for folder, want := range cases {
		if got := corpus.Classify(folder); got != want {
			t.Fatalf("Classify(%q) = %s, want %s", folder, got, want)
		}
	}
}

func TestClassLabel(t *testing.T) {
	if l, ok := corpus.Normal.Label(); !ok || l != corpus.LabelNormal {
		t.Fatalf("normal label = %v, %v", l, ok)
	}
	if l, ok := corpus.Abnormal.Label(); !ok || l != corpus.LabelAbnormal {
		t.Fatalf("abnormal label = %v, %v", l, ok)
	}
	if _, ok := corpus.Ambiguous.Label(); ok {
		t.Fatal("ambiguous must not map to a label")
	}
}

func TestGroupOf(t *testing.T) {
	path := filepath.Join("data", "fan", "id_01", "normal", "00001.wav")
	if got := corpus.GroupOf(path); got != "id_01" {
		t.Fatalf("GroupOf = %q, want id_01", got)
	}
	if got := corpus.GroupOf(filepath.Join("normal", "x.wav")); got != "" {
		t.Fatalf("expected no group for shallow path, got %q", got)
	}
}
