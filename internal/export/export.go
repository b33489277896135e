package export

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"faultsense/internal/checkpoint"
	"faultsense/internal/config"
	"faultsense/internal/failures"
	"faultsense/internal/features"
	"faultsense/internal/fileutil"
	"faultsense/internal/logging"
	"faultsense/internal/waveform"
)

// ErrMismatch is returned by Verify when a recomputed value differs.
var ErrMismatch = errors.New("artifact does not match local pipeline")

// referenceSeed fixes the noise in the reference waveform.
const referenceSeed = 0x5eed

// ReferenceWaveform returns the deterministic conformance input: two tones
// and seeded noise, followed by a silent tail.
func ReferenceWaveform(audio config.Audio) []float32 {
	n := audio.TargetLength()
	rng := rand.New(rand.NewPCG(referenceSeed, uint64(audio.SampleRate)))
	out := make([]float32, n)
	voiced := n * 4 / 5
	for i := 0; i < voiced; i++ {
		t := float64(i) / float64(audio.SampleRate)
		v := 0.4*math.Sin(2*math.Pi*440*t) + 0.2*math.Sin(2*math.Pi*1234.5*t) + 0.05*(2*rng.Float64()-1)
		out[i] = float32(v)
	}
	return out
}

// Build creates an artifact from a model snapshot.
func Build(cfg *config.Config, snapshotPath string) (Artifact, error) {
	snap, digest, err := checkpoint.ReadSnapshot(snapshotPath)
	if err != nil {
		return Artifact{}, failures.Wrap(failures.ErrConfiguration, "export", "read snapshot", snapshotPath, err)
	}
	q := Quantize(snap.Model)
	pipeline := NewPipeline(cfg.Audio)
	ref, err := computeReference(pipeline, q)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		FormatVersion: FormatVersion,
		Pipeline:      pipeline,
		Model:         q,
		Reference:     ref,
		SourceRunID:   snap.RunID,
		SourceEpoch:   snap.Epoch,
		SourceDigest:  digest,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Write encodes an artifact atomically and returns its digest.
func Write(path string, artifact Artifact) (string, error) {
	data, err := msgpack.Marshal(&artifact)
	if err != nil {
		return "", fmt.Errorf("encode artifact: %w", err)
	}
	return fileutil.WriteAtomic(path, data, 0o644)
}

// Read decodes an artifact file.
func Read(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, err
	}
	var artifact Artifact
	if err := msgpack.Unmarshal(data, &artifact); err != nil {
		return Artifact{}, failures.Wrap(failures.ErrValidation, "export", "decode", path, err)
	}
	if artifact.FormatVersion != FormatVersion {
		return Artifact{}, failures.Wrap(failures.ErrValidation, "export", "decode",
			fmt.Sprintf("format version %d, expected %d", artifact.FormatVersion, FormatVersion), nil)
	}
	return artifact, nil
}

func computeReference(pipeline Pipeline, q QuantizedModel) (Reference, error) {
	audio := pipeline.Audio()
	extractor, err := features.NewExtractor(audio)
	if err != nil {
		return Reference{}, failures.Wrap(failures.ErrValidation, "export", "pipeline", "", err)
	}
	input := ReferenceWaveform(audio)
	return referenceFor(extractor, input, q)
}

func referenceFor(extractor *features.Extractor, input []float32, q QuantizedModel) (Reference, error) {
	audio := extractor.Config()
	w, err := waveform.FromSamples(input, audio.SampleRate, audio)
	if err != nil {
		return Reference{}, err
	}
	tensor, err := extractor.Extract(w)
	if err != nil {
		return Reference{}, err
	}
	fitted, _ := features.Adapter{Mels: q.Mels, Frames: q.Frames}.Fit(tensor)
	m, err := q.Dequantize()
	if err != nil {
		return Reference{}, failures.Wrap(failures.ErrValidation, "export", "dequantize", "", err)
	}
	score, err := m.Score(fitted)
	if err != nil {
		return Reference{}, err
	}
	inputTensor := features.Tensor{Mels: 1, Frames: len(input), Channels: 1, Data: input}
	return Reference{
		Input:         input,
		InputDigest:   inputTensor.Digest(),
		FeatureDigest: tensor.Digest(),
		FittedDigest:  fitted.Digest(),
		Score:         score,
	}, nil
}

// Report lists the outcome of each Verify check.
type Report struct {
	InputMatch   bool
	FeatureMatch bool
	FittedMatch  bool
	ScoreMatch   bool
	Recomputed   Reference
}

// OK reports whether every check passed.
func (r Report) OK() bool {
	return r.InputMatch && r.FeatureMatch && r.FittedMatch && r.ScoreMatch
}

// Verify recomputes the reference vector with the local extractor and
// compares every digest byte-for-byte and the score exactly.
func Verify(artifact Artifact, logger *slog.Logger) (Report, error) {
	logger = logging.NewComponentLogger(logger, "export")
	audio := artifact.Pipeline.Audio()
	if err := audio.Validate(); err != nil {
		return Report{}, failures.Wrap(failures.ErrValidation, "export", "verify", "pipeline constants", err)
	}
	extractor, err := features.NewExtractor(audio)
	if err != nil {
		return Report{}, failures.Wrap(failures.ErrValidation, "export", "verify", "", err)
	}
	if NewPipeline(audio) != artifact.Pipeline {
		return Report{}, failures.Wrap(failures.ErrValidation, "export", "verify",
			"artifact describes a pipeline variant this build does not implement", ErrMismatch)
	}

	recomputed, err := referenceFor(extractor, artifact.Reference.Input, artifact.Model)
	if err != nil {
		return Report{}, err
	}
	report := Report{
		InputMatch:   recomputed.InputDigest == artifact.Reference.InputDigest,
		FeatureMatch: recomputed.FeatureDigest == artifact.Reference.FeatureDigest,
		FittedMatch:  recomputed.FittedDigest == artifact.Reference.FittedDigest,
		ScoreMatch:   recomputed.Score == artifact.Reference.Score,
		Recomputed:   recomputed,
	}
	if !report.OK() {
		logging.WarnWithContext(logger, "artifact verification failed", "export_mismatch",
			logging.Bool("input", report.InputMatch),
			logging.Bool("features", report.FeatureMatch),
			logging.Bool("fitted", report.FittedMatch),
			logging.Bool("score", report.ScoreMatch),
			logging.String(logging.FieldErrorHint, "re-export with the current build or fix the diverging pipeline"),
			logging.String(logging.FieldImpact, "on-device predictions may differ from training"))
		return report, failures.Wrap(failures.ErrValidation, "export", "verify", "reference mismatch", ErrMismatch)
	}
	return report, nil
}
