// Package main hosts the faultsense CLI entrypoint and command graph.
//
// The Cobra command tree wires configuration, logging, and the internal
// packages together: train builds a dataset and runs the resumable epoch
// loop, predict classifies recordings, export and verify handle the portable
// artifact, and features and scan are debugging aids for the extractor and
// the corpus layout.
//
// Keep this package lean: add new functionality to the internal packages
// first, then surface it through a dedicated command or flag here.
package main
