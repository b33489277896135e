// Package inference classifies single waveforms with the same loader,
// extractor and shape adapter the dataset builder uses.
package inference

import (
	"fmt"

	"faultsense/internal/corpus"
)

// Threshold separates normal from abnormal scores.
const Threshold = 0.5

// Verdict is the outcome of one prediction. Demo verdicts come from a
// predictor without a trained model and carry no label.
type Verdict struct {
	Label      corpus.Label `json:"label"`
	Confidence float64      `json:"confidence"`
	Score      float64      `json:"score"`
	Demo       bool         `json:"demo"`
}

// Classify maps a score in [0, 1] to a verdict: scores above 0.5 are
// abnormal with confidence score*100, the rest normal with (1-score)*100.
func Classify(score float64) Verdict {
	if score > Threshold {
		return Verdict{Label: corpus.LabelAbnormal, Confidence: score * 100, Score: score}
	}
	return Verdict{Label: corpus.LabelNormal, Confidence: (1 - score) * 100, Score: score}
}

func (v Verdict) String() string {
	if v.Demo {
		return "demo (no trained model)"
	}
	return fmt.Sprintf("%s (%.1f%%)", v.Label, v.Confidence)
}
