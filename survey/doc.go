// Package survey downloads read files named by a manifest, streams each one
// through an external short-read aligner, and stratifies the aligner's SAM
// output into per-job and run-wide statistics.
//
// A run owns a fixed pool of workers fed from a TaskQueue. For each job a
// worker optionally downloads the read file (with retries), decompresses it
// on the fly, pipes it into the aligner and reads SAM lines back in order.
// Every data line updates two stratify.Aggregators: the job's own, owned by
// the worker, and the run-wide one, which is shared and guarded by a single
// lock. Both are flushed to disk every Opts.FlushInterval records and again
// when the job (or the run) ends.
//
// Output layout:
//
//   <OutDir>/                        run-wide statistics
//   <OutDir>/<group>/<name>/all.sam  aligner output for one job
//   <OutDir>/<group>/<name>/*.tsv    per-job statistics
package survey
