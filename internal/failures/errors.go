// Package failures defines the error markers shared by every faultsense
// component and the policy that maps them to skip, fallback, or fatal
// handling.
//
// Loader and scanner errors are local: they carry ErrSkip and the dataset
// builder absorbs them. Splitter, balancer, and checkpoint invariant
// violations carry ErrConfiguration or ErrInconsistent and must halt the run.
package failures

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSkip marks a single-sample failure the caller logs and excludes.
	ErrSkip = errors.New("sample skipped")
	// ErrFallback marks a missing artifact that degrades to an explicitly
	// labeled fallback result (for example an untrained demo verdict).
	ErrFallback = errors.New("fallback")
	// ErrConfiguration marks a run that cannot proceed with the current
	// configuration or data (empty dataset, empty split side, missing
	// checkpoint on resume).
	ErrConfiguration = errors.New("configuration error")
	// ErrInconsistent marks persisted state that disagrees with itself and
	// requires operator intervention.
	ErrInconsistent = errors.New("inconsistent state")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
)

// Kind is the handling policy for an error.
type Kind int

const (
	KindFatal Kind = iota
	KindSkip
	KindFallback
)

func (k Kind) String() string {
	switch k {
	case KindSkip:
		return "skip"
	case KindFallback:
		return "fallback"
	default:
		return "fatal"
	}
}

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrConfiguration
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its handling policy. Anything not explicitly
// marked as skip or fallback is fatal.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindFatal
	case errors.Is(err, ErrSkip):
		return KindSkip
	case errors.Is(err, ErrFallback):
		return KindFallback
	default:
		return KindFatal
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "failure"
	}
	return strings.Join(parts, ": ")
}
