package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeFeatureCache(); err != nil {
		return err
	}
	c.normalizeTraining()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CheckpointDir) == "" {
		c.Paths.CheckpointDir = defaultCheckpointDir
	}
	if c.Paths.CheckpointDir, err = expandPath(c.Paths.CheckpointDir); err != nil {
		return fmt.Errorf("paths.checkpoint_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	roots := make([]string, 0, len(c.Paths.DatasetRoots))
	seen := make(map[string]struct{}, len(c.Paths.DatasetRoots))
	for _, root := range c.Paths.DatasetRoots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		expanded, err := expandPath(strings.TrimSpace(root))
		if err != nil {
			return fmt.Errorf("paths.dataset_roots: %w", err)
		}
		if _, dup := seen[expanded]; dup {
			continue
		}
		seen[expanded] = struct{}{}
		roots = append(roots, expanded)
	}
	c.Paths.DatasetRoots = roots
	return nil
}

func (c *Config) normalizeFeatureCache() error {
	var err error
	if strings.TrimSpace(c.FeatureCache.Path) == "" {
		c.FeatureCache.Path = defaultFeatureCachePath
	}
	if c.FeatureCache.Path, err = expandPath(c.FeatureCache.Path); err != nil {
		return fmt.Errorf("feature_cache.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeTraining() {
	c.Training.Monitor = strings.ToLower(strings.TrimSpace(c.Training.Monitor))
	if c.Training.Monitor == "" {
		c.Training.Monitor = defaultMonitor
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
