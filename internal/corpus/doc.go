// Package corpus walks labeled directory trees laid out as
// <root>/<machine_type>/<machine_id>/<label_folder>/*.wav and resolves a
// label and a group (machine identity) for every file.
//
// Classification and grouping are plain functions so they can be tested
// without a filesystem. The Scanner is a lazy single-pass sequence.
package corpus
