package inference

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"faultsense/internal/checkpoint"
	"faultsense/internal/config"
	"faultsense/internal/failures"
	"faultsense/internal/features"
	"faultsense/internal/logging"
	"faultsense/internal/model"
	"faultsense/internal/waveform"
)

// Predictor scores waveforms.
type Predictor struct {
	audio     config.Audio
	extractor *features.Extractor
	adapter   features.Adapter
	model     *model.Model
	tempDir   string
	logger    *slog.Logger
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithTempDir sets where uploaded audio is staged.
func WithTempDir(dir string) Option {
	return func(p *Predictor) {
		p.tempDir = dir
	}
}

// WithModel uses an in-memory model instead of reading a snapshot.
func WithModel(m *model.Model) Option {
	return func(p *Predictor) {
		p.model = m
	}
}

// NewPredictor loads the model snapshot at modelPath. A missing snapshot is
// not an error: the predictor falls back to demo verdicts and says so.
func NewPredictor(cfg *config.Config, modelPath string, logger *slog.Logger, opts ...Option) (*Predictor, error) {
	extractor, err := features.NewExtractor(cfg.Audio)
	if err != nil {
		return nil, failures.Wrap(failures.ErrConfiguration, "inference", "init", "feature extractor", err)
	}
	p := &Predictor{
		audio:     cfg.Audio,
		extractor: extractor,
		adapter:   features.Adapter{Mels: cfg.Model.InputMels, Frames: cfg.Model.InputFrames},
		tempDir:   os.TempDir(),
		logger:    logging.NewComponentLogger(logger, "inference"),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.model == nil && modelPath != "" {
		m, err := checkpoint.LoadModel(modelPath)
		switch {
		case err == nil:
			p.model = m
		case errors.Is(err, fs.ErrNotExist):
			logging.WarnWithContext(p.logger, "no trained model found; predictions are demo results", "model_missing",
				logging.String(logging.FieldPath, modelPath),
				logging.String(logging.FieldErrorHint, "run faultsense train or pass --model"),
				logging.String(logging.FieldImpact, "verdicts are labeled demo and carry no score"))
		default:
			return nil, failures.Wrap(failures.ErrConfiguration, "inference", "load model", modelPath, err)
		}
	}
	if p.model != nil {
		p.adapter = features.Adapter{Mels: p.model.Mels, Frames: p.model.Frames}
	}
	return p, nil
}

// Demo reports whether the predictor has no trained model.
func (p *Predictor) Demo() bool {
	return p.model == nil
}

// Predict classifies a waveform that already has the configured length.
func (p *Predictor) Predict(w waveform.Waveform) (Verdict, error) {
	if p.model == nil {
		return Verdict{Demo: true}, nil
	}
	tensor, err := p.extractor.Extract(w)
	if err != nil {
		return Verdict{}, err
	}
	fitted, resized := p.adapter.Fit(tensor)
	if resized {
		p.logger.Debug("features resized to model input shape",
			logging.String(logging.FieldEventType, "shape_adapted"),
			logging.Int("from_frames", tensor.Frames),
			logging.Int("to_frames", fitted.Frames))
	}
	score, err := p.model.Score(fitted)
	if err != nil {
		return Verdict{}, err
	}
	return Classify(score), nil
}

// PredictFile loads and classifies an audio file.
func (p *Predictor) PredictFile(path string) (Verdict, error) {
	w, err := waveform.Load(path, p.audio)
	if err != nil {
		return Verdict{}, err
	}
	return p.Predict(w)
}

// PredictReader stages r in a uniquely named temp file, classifies it, and
// removes the file on every path.
func (p *Predictor) PredictReader(r io.Reader) (verdict Verdict, err error) {
	path := filepath.Join(p.tempDir, "faultsense-"+uuid.NewString()+".wav")
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			p.logger.Warn("failed to remove staged upload", logging.String(logging.FieldPath, path), logging.Error(rmErr))
		}
	}()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return Verdict{}, fmt.Errorf("stage upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return Verdict{}, fmt.Errorf("stage upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return Verdict{}, fmt.Errorf("stage upload: %w", err)
	}
	return p.PredictFile(path)
}
