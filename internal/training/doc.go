// Package training owns epoch progression.
//
// Machine is a pure state machine: AdvanceEpoch computes the next
// checkpoint.State from an epoch's metrics and Commit confirms the caller
// persisted it. Trainer drives a Machine over real data, writing snapshots
// before the state file for every epoch so resume always finds a snapshot at
// least as new as the state it reads.
package training
