// Package export converts archived channel samples into yearly .pb files.
//
// Each PV is exported independently. Its samples are read in timestamp
// order from an archive.Index and appended to files named
//
//	<pv-path>:<year>.pb[.<generation>]
//
// under the output directory, where <pv-path> is the PV name with the
// configured separator characters replaced by the path separator. Every
// file starts with a PayloadInfo header line followed by one escaped
// sample record per line (see packages escape and pb).
//
// # Sample pipeline
//
// Every sample passes through the connectivity state machine first.
// Samples carrying an outage severity (disconnected, archive off, archive
// disabled) are never written; the next connected sample is annotated with
// cnxlostepsecs and cnxregainedepsecs and, after an archiver restart or
// resume, with startup=true or resume=true. Connected samples also carry
// the channel's static metadata fields (HOPR, LOPR, EGU, ... or states)
// on the first record of each UTC day.
//
// # File lifecycle
//
// A file is closed and the next one opened when a sample falls outside the
// file's year, or when the sample's type differs from the file's type. A
// type change increments the PV's generation, which becomes the file name
// suffix.
//
// Exports are resumable. When a target file already exists its header is
// checked against the sample type and the file is scanned for its last
// record; samples at or before that record are skipped, but still replayed
// through the connectivity and metadata state so that the next appended
// record matches what an uninterrupted run would have produced. An
// unterminated trailing fragment left by an interrupted write is truncated
// before appending.
//
// # Batches
//
// Batch drives Exporter from a control stream of PV names (one per line,
// terminated by a sentinel line) and writes a completion line after every
// PV. Batch.RunAll exports a fixed list with a bounded number of workers.
package export
