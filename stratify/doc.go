// Package stratify accumulates read-quality statistics from aligner output,
// stratified by (SAM flag, read length).
//
// An Aggregator owns one Stats per stratum. Update folds one alignment
// record into its stratum, and Flush writes every stratum to a directory as
// a fixed set of TSV files plus FASTQ files holding the reads that failed to
// align:
//
//   basics.tsv       flag, length, count
//   means.tsv        flag, length, rounded mean quality, count
//   medians.tsv      flag, length, median quality, count
//   nns.tsv          flag, length, number of N bases, count
//   qual_by_cyc.tsv  flag, length, cycle, quality, count
//   unal.fastq       unaligned reads of any length (appended)
//   unal_<len>.fastq unaligned reads of one length (appended)
//
// The TSV files are rewritten from scratch on every flush and list only
// nonzero buckets. The FASTQ files are appended to, and the in-memory buffer
// of unaligned reads is cleared once it has been written.
//
// An Aggregator is not safe for concurrent use.
package stratify
