package config

const (
	defaultCheckpointDir      = "~/.local/share/faultsense/checkpoints"
	defaultLogDir             = "~/.local/share/faultsense/logs"
	defaultFeatureCachePath   = "~/.cache/faultsense/features.db"
	defaultSampleRate         = 22050
	defaultDurationSeconds    = 5
	defaultNFFT               = 2048
	defaultHopLength          = 512
	defaultNMels              = 128
	defaultLogEpsilon         = 1e-6
	defaultNormEpsilon        = 1e-8
	defaultInputMels          = 128
	defaultInputFrames        = 216
	defaultEpochs             = 50
	defaultBatchSize          = 32
	defaultLearningRate       = 0.001
	defaultValidationFraction = 0.2
	defaultSeed               = 42
	defaultMonitor            = "val_accuracy"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CheckpointDir: defaultCheckpointDir,
			LogDir:        defaultLogDir,
		},
		Audio: DefaultAudio(),
		Model: Model{
			InputMels:   defaultInputMels,
			InputFrames: defaultInputFrames,
		},
		Training: Training{
			Epochs:             defaultEpochs,
			BatchSize:          defaultBatchSize,
			LearningRate:       defaultLearningRate,
			ValidationFraction: defaultValidationFraction,
			Seed:               defaultSeed,
			Monitor:            defaultMonitor,
		},
		FeatureCache: FeatureCache{
			Path: defaultFeatureCachePath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// DefaultAudio returns the canonical feature pipeline constants.
func DefaultAudio() Audio {
	return Audio{
		SampleRate:      defaultSampleRate,
		DurationSeconds: defaultDurationSeconds,
		NFFT:            defaultNFFT,
		HopLength:       defaultHopLength,
		NMels:           defaultNMels,
		FMin:            0,
		FMax:            0,
		LogEpsilon:      defaultLogEpsilon,
		NormEpsilon:     defaultNormEpsilon,
	}
}
