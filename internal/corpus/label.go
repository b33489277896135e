package corpus

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
)

// Label is the binary training target.
type Label int

const (
	LabelNormal   Label = 0
	LabelAbnormal Label = 1
)

func (l Label) String() string {
	if l == LabelAbnormal {
		return "abnormal"
	}
	return "normal"
}

// Class is the outcome of classifying a label folder name.
type Class int

const (
	Ambiguous Class = iota
	Normal
	Abnormal
)

func (c Class) String() string {
	switch c {
	case Normal:
		return "normal"
	case Abnormal:
		return "abnormal"
	default:
		return "ambiguous"
	}
}

// Label maps a class to its training label. Ambiguous has none.
func (c Class) Label() (Label, bool) {
	switch c {
	case Normal:
		return LabelNormal, true
	case Abnormal:
		return LabelAbnormal, true
	default:
		return 0, false
	}
}

// Classify maps a folder name to a class, case-insensitively: "normal" is
// Normal, "abnormal" or any name containing "fault" is Abnormal, anything
// else is Ambiguous.
func Classify(folder string) Class {
	name := cases.Fold().String(folder)
	switch {
	case name == "normal":
		return Normal
	case name == "abnormal", strings.Contains(name, "fault"):
		return Abnormal
	default:
		return Ambiguous
	}
}

// GroupOf returns the name of the folder two levels above path, or "" when
// the path is too shallow.
func GroupOf(path string) string {
	labelDir := filepath.Dir(filepath.Clean(path))
	groupDir := filepath.Dir(labelDir)
	if groupDir == labelDir || groupDir == "." || groupDir == string(filepath.Separator) {
		return ""
	}
	return filepath.Base(groupDir)
}
