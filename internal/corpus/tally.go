package corpus

import "sort"

// Tally counts entries per group and label.
type Tally struct {
	groups map[string]*[2]int
}

// Add records one entry.
func (t *Tally) Add(e Entry) {
	if t.groups == nil {
		t.groups = make(map[string]*[2]int)
	}
	counts, ok := t.groups[e.Group]
	if !ok {
		counts = &[2]int{}
		t.groups[e.Group] = counts
	}
	counts[e.Label]++
}

// Groups returns the group ids in sorted order.
func (t *Tally) Groups() []string {
	ids := make([]string, 0, len(t.groups))
	for id := range t.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of entries for a group and label.
func (t *Tally) Count(group string, label Label) int {
	if counts, ok := t.groups[group]; ok {
		return counts[label]
	}
	return 0
}

// Total returns the number of entries with label across all groups.
func (t *Tally) Total(label Label) int {
	total := 0
	for _, counts := range t.groups {
		total += counts[label]
	}
	return total
}
