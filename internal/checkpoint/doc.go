// Package checkpoint persists model snapshots and the epoch-state file in a
// single operator-visible directory.
//
// Layout:
//
//	best_model.msgpack     best validation metric so far
//	latest_model.msgpack   overwritten every epoch, used to resume
//	final_model.msgpack    written once training completes
//	training_state.json    sole source of truth for resume
//	train.lock             held by the one process allowed to write
//
// Every file is replaced atomically. Snapshots for an epoch are durable
// before the state file naming that epoch is written, so the state file
// never points past what is on disk. Resume verifies the latest snapshot's
// epoch and SHA-256 digest against the state file and refuses to continue on
// any disagreement.
package checkpoint
