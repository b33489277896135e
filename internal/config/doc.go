// Package config loads, normalizes, and validates faultsense configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes the audio
// constants of the feature pipeline, the model input shape, training knobs,
// and the checkpoint and log directories.
//
// A Config is read once at process start and then passed by value into each
// component. Nothing in the repository reads configuration from package-level
// state, so two extractors built from the same Config always agree.
package config
