// Package ledger records the outcome of every PV export in the state
// database.
//
// A Recorder is an export.Observer: wired into a batch it writes one
// export_runs row per finished PV, tagged with the batch identifier. The
// status command reads the newest row per PV back through Latest.
package ledger
