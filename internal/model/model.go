// Package model holds the trainable classifier: logistic regression over
// per-mel mean and standard deviation pooled across frames, optimized with
// Adam. Weights and optimizer moments are plain exported fields so a msgpack
// snapshot restores training exactly.
package model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"faultsense/internal/corpus"
	"faultsense/internal/dataset"
	"faultsense/internal/features"
)

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
	probClip    = 1e-7
)

// Model is a binary classifier over fixed-shape feature tensors.
type Model struct {
	Mels         int       `msgpack:"mels"`
	Frames       int       `msgpack:"frames"`
	LearningRate float64   `msgpack:"learning_rate"`
	Weights      []float64 `msgpack:"weights"`
	Bias         float64   `msgpack:"bias"`
	// Adam moments, weights first and bias last.
	M    []float64 `msgpack:"m"`
	V    []float64 `msgpack:"v"`
	Step int       `msgpack:"step"`
}

// Metrics are averaged over one pass.
type Metrics struct {
	Loss     float64 `json:"loss" msgpack:"loss"`
	Accuracy float64 `json:"accuracy" msgpack:"accuracy"`
}

// New returns a zero-initialized model for the given input shape.
func New(mels, frames int, learningRate float64) *Model {
	n := 2 * mels
	return &Model{
		Mels:         mels,
		Frames:       frames,
		LearningRate: learningRate,
		Weights:      make([]float64, n),
		M:            make([]float64, n+1),
		V:            make([]float64, n+1),
	}
}

// Pool reduces a tensor to per-mel frame means followed by per-mel frame
// standard deviations.
func Pool(t features.Tensor) []float64 {
	out := make([]float64, 2*t.Mels)
	row := make([]float64, t.Frames)
	for m := 0; m < t.Mels; m++ {
		for f := 0; f < t.Frames; f++ {
			row[f] = float64(t.At(m, f))
		}
		mean := floats.Sum(row) / float64(t.Frames)
		var sq float64
		for _, v := range row {
			sq += (v - mean) * (v - mean)
		}
		out[m] = mean
		out[t.Mels+m] = math.Sqrt(sq / float64(t.Frames))
	}
	return out
}

func (m *Model) checkShape(t features.Tensor) error {
	if t.Mels != m.Mels || t.Frames != m.Frames {
		return fmt.Errorf("model expects %dx%d input, got %dx%d", m.Mels, m.Frames, t.Mels, t.Frames)
	}
	return nil
}

// Score returns the abnormal probability in [0, 1].
func (m *Model) Score(t features.Tensor) (float64, error) {
	if err := m.checkShape(t); err != nil {
		return 0, err
	}
	return m.scorePooled(Pool(t)), nil
}

func (m *Model) scorePooled(x []float64) float64 {
	return sigmoid(floats.Dot(m.Weights, x) + m.Bias)
}

// TrainEpoch runs one pass of mini-batch Adam over samples in an order drawn
// from rng and returns the mean training loss and accuracy.
func (m *Model) TrainEpoch(samples []dataset.Sample, batchSize int, rng *rand.Rand) (Metrics, error) {
	if len(samples) == 0 {
		return Metrics{}, fmt.Errorf("train epoch: no samples")
	}
	if batchSize <= 0 {
		batchSize = len(samples)
	}
	pooled := make([][]float64, len(samples))
	for i, s := range samples {
		if err := m.checkShape(s.Tensor); err != nil {
			return Metrics{}, fmt.Errorf("train epoch %s: %w", s.Path, err)
		}
		pooled[i] = Pool(s.Tensor)
	}

	order := rng.Perm(len(samples))
	grad := make([]float64, len(m.Weights))
	var total Metrics
	for start := 0; start < len(order); start += batchSize {
		end := min(start+batchSize, len(order))
		for i := range grad {
			grad[i] = 0
		}
		var gradBias float64
		for _, idx := range order[start:end] {
			p := m.scorePooled(pooled[idx])
			y := target(samples[idx].Label)
			total.Loss += crossEntropy(p, y)
			if (p > 0.5) == (y == 1) {
				total.Accuracy++
			}
			floats.AddScaled(grad, p-y, pooled[idx])
			gradBias += p - y
		}
		scale := 1 / float64(end-start)
		floats.Scale(scale, grad)
		m.adamStep(grad, gradBias*scale)
	}
	total.Loss /= float64(len(samples))
	total.Accuracy /= float64(len(samples))
	return total, nil
}

// Evaluate computes loss and accuracy without updating the model.
func (m *Model) Evaluate(samples []dataset.Sample) (Metrics, error) {
	if len(samples) == 0 {
		return Metrics{}, fmt.Errorf("evaluate: no samples")
	}
	var total Metrics
	for _, s := range samples {
		p, err := m.Score(s.Tensor)
		if err != nil {
			return Metrics{}, fmt.Errorf("evaluate %s: %w", s.Path, err)
		}
		y := target(s.Label)
		total.Loss += crossEntropy(p, y)
		if (p > 0.5) == (y == 1) {
			total.Accuracy++
		}
	}
	total.Loss /= float64(len(samples))
	total.Accuracy /= float64(len(samples))
	return total, nil
}

func (m *Model) adamStep(grad []float64, gradBias float64) {
	m.Step++
	c1 := 1 - math.Pow(adamBeta1, float64(m.Step))
	c2 := 1 - math.Pow(adamBeta2, float64(m.Step))
	update := func(i int, g float64) float64 {
		m.M[i] = adamBeta1*m.M[i] + (1-adamBeta1)*g
		m.V[i] = adamBeta2*m.V[i] + (1-adamBeta2)*g*g
		return m.LearningRate * (m.M[i] / c1) / (math.Sqrt(m.V[i]/c2) + adamEpsilon)
	}
	for i, g := range grad {
		m.Weights[i] -= update(i, g)
	}
	m.Bias -= update(len(grad), gradBias)
}

// Clone returns a deep copy.
func (m *Model) Clone() *Model {
	c := *m
	c.Weights = append([]float64(nil), m.Weights...)
	c.M = append([]float64(nil), m.M...)
	c.V = append([]float64(nil), m.V...)
	return &c
}

// Validate checks internal consistency after decoding.
func (m *Model) Validate() error {
	n := 2 * m.Mels
	if m.Mels <= 0 || m.Frames <= 0 {
		return fmt.Errorf("model shape %dx%d invalid", m.Mels, m.Frames)
	}
	if len(m.Weights) != n || len(m.M) != n+1 || len(m.V) != n+1 {
		return fmt.Errorf("model parameter lengths do not match %d mels", m.Mels)
	}
	return nil
}

func target(l corpus.Label) float64 {
	if l == corpus.LabelAbnormal {
		return 1
	}
	return 0
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func crossEntropy(p, y float64) float64 {
	p = math.Min(math.Max(p, probClip), 1-probClip)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}
