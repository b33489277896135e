// Package dataset chains the corpus scanner, waveform loader, feature
// extractor and shape adapter into labeled, grouped samples.
//
// Single-sample failures are skipped and counted; a build that yields no
// samples at all is a configuration error.
package dataset

import (
	"sort"

	"faultsense/internal/corpus"
	"faultsense/internal/features"
)

// Sample is one extracted, labeled tensor.
type Sample struct {
	Path   string
	Tensor features.Tensor
	Label  corpus.Label
	Group  string
}

// Dataset maps group ids to their samples.
type Dataset map[string][]Sample

// Add appends a sample to its group.
func (d Dataset) Add(s Sample) {
	d[s.Group] = append(d[s.Group], s)
}

// GroupIDs returns the group ids in sorted order.
func (d Dataset) GroupIDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the total number of samples.
func (d Dataset) Len() int {
	n := 0
	for _, samples := range d {
		n += len(samples)
	}
	return n
}

// Samples flattens the given groups in order.
func (d Dataset) Samples(groups []string) []Sample {
	var out []Sample
	for _, id := range groups {
		out = append(out, d[id]...)
	}
	return out
}

// Report summarizes a build.
type Report struct {
	Scanned int
	Loaded  int
	Skipped int
	Cached  int
	Resized int
}
