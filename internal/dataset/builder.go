package dataset

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"faultsense/internal/config"
	"faultsense/internal/corpus"
	"faultsense/internal/featurecache"
	"faultsense/internal/features"
	"faultsense/internal/failures"
	"faultsense/internal/logging"
	"faultsense/internal/waveform"
)

// Builder turns scanned corpus entries into a Dataset.
type Builder struct {
	audio     config.Audio
	extractor *features.Extractor
	adapter   features.Adapter
	cache     *featurecache.Cache
	logger    *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithCache reads and writes extracted tensors through cache.
func WithCache(cache *featurecache.Cache) Option {
	return func(b *Builder) {
		b.cache = cache
	}
}

// NewBuilder constructs a builder for the configured pipeline and model shape.
func NewBuilder(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Builder, error) {
	extractor, err := features.NewExtractor(cfg.Audio)
	if err != nil {
		return nil, failures.Wrap(failures.ErrConfiguration, "dataset", "init", "feature extractor", err)
	}
	b := &Builder{
		audio:     cfg.Audio,
		extractor: extractor,
		adapter:   features.Adapter{Mels: cfg.Model.InputMels, Frames: cfg.Model.InputFrames},
		logger:    logging.NewComponentLogger(logger, "dataset"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build consumes entries until exhausted. Skippable errors are logged and
// counted; any other error aborts the build.
func (b *Builder) Build(ctx context.Context, entries iter.Seq2[corpus.Entry, error]) (Dataset, Report, error) {
	ds := Dataset{}
	var report Report
	var buildErr error

	for entry, err := range entries {
		if ctxErr := ctx.Err(); ctxErr != nil {
			buildErr = ctxErr
			break
		}
		report.Scanned++
		if err == nil {
			var sample Sample
			var cached, resized bool
			sample, cached, resized, err = b.sample(ctx, entry)
			if err == nil {
				ds.Add(sample)
				report.Loaded++
				if cached {
					report.Cached++
				}
				if resized {
					report.Resized++
				}
				continue
			}
		}
		if failures.Classify(err) != failures.KindSkip {
			buildErr = err
			break
		}
		report.Skipped++
		logging.WarnWithContext(b.logger, "sample skipped", "sample_skipped",
			logging.String(logging.FieldPath, entry.Path),
			logging.String(logging.FieldGroup, entry.Group),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the file decodes as PCM WAV and sits under <machine>/<label>/"),
			logging.String(logging.FieldImpact, "sample excluded from the dataset"))
	}
	if buildErr != nil {
		return nil, report, buildErr
	}

	if report.Resized > 0 {
		mels, frames := b.extractor.Shape()
		b.logger.Info("features resized to model input shape",
			logging.String(logging.FieldEventType, "shape_adapted"),
			logging.String("from", fmt.Sprintf("%dx%d", mels, frames)),
			logging.String("to", fmt.Sprintf("%dx%d", b.adapter.Mels, b.adapter.Frames)),
			logging.Int("samples", report.Resized))
	}
	b.logger.Info("dataset built",
		logging.Int("scanned", report.Scanned),
		logging.Int("loaded", report.Loaded),
		logging.Int("skipped", report.Skipped),
		logging.Int("cached", report.Cached),
		logging.Int("groups", len(ds)))

	if ds.Len() == 0 {
		return nil, report, failures.Wrap(failures.ErrConfiguration, "dataset", "build", "no usable samples found", nil)
	}
	return ds, report, nil
}

func (b *Builder) sample(ctx context.Context, entry corpus.Entry) (Sample, bool, bool, error) {
	tensor, cached, err := b.extract(ctx, entry.Path)
	if err != nil {
		return Sample{}, false, false, err
	}
	fitted, resized := b.adapter.Fit(tensor)
	return Sample{Path: entry.Path, Tensor: fitted, Label: entry.Label, Group: entry.Group}, cached, resized, nil
}

func (b *Builder) extract(ctx context.Context, path string) (features.Tensor, bool, error) {
	if b.cache != nil {
		tensor, ok, err := b.cache.Get(ctx, path)
		if err != nil {
			return features.Tensor{}, false, err
		}
		if ok {
			return tensor, true, nil
		}
	}

	w, err := waveform.Load(path, b.audio)
	if err != nil {
		return features.Tensor{}, false, err
	}
	tensor, err := b.extractor.Extract(w)
	if err != nil {
		return features.Tensor{}, false, failures.Wrap(failures.ErrSkip, "dataset", "extract", path, err)
	}

	if b.cache != nil {
		if err := b.cache.Put(ctx, path, tensor); err != nil {
			logging.WarnWithContext(b.logger, "feature cache write failed", "feature_cache_write",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "features will be recomputed next run"))
		}
	}
	return tensor, false, nil
}
