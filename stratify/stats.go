package stratify

import (
	"bytes"
	"fmt"

	"github.com/grailbio/readsurvey/encoding/fastq"
)

// Key identifies a stratum: reads sharing a SAM flag and a sequence length.
type Key struct {
	Flag int
	Len  int
}

// Less orders keys by flag, then by length.
func (k Key) Less(o Key) bool {
	if k.Flag != o.Flag {
		return k.Flag < o.Flag
	}
	return k.Len < o.Len
}

func (k Key) String() string { return fmt.Sprintf("%d:%d", k.Flag, k.Len) }

// Stats holds the running counters for one stratum.
type Stats struct {
	// QualsByCycle[i] is the histogram of quality values at read position i.
	QualsByCycle []FreqTable
	// Means and Medians are histograms of each read's rounded mean and
	// median quality.
	Means, Medians FreqTable
	// Ns is the histogram of ambiguous-base counts per read.
	Ns FreqTable
	// N is the number of reads folded into this stratum.
	N int64

	// unal buffers FASTQ text for unaligned reads until the next flush.
	unal bytes.Buffer
	fq   *fastq.Writer
}

func (s *Stats) update(r Record, qs []int) {
	if len(qs) > len(s.QualsByCycle) {
		grown := make([]FreqTable, len(qs))
		copy(grown, s.QualsByCycle)
		s.QualsByCycle = grown
	}
	for i, q := range qs {
		s.QualsByCycle[i].Add(q)
	}
	s.Means.Add(Mean(qs))
	s.Medians.Add(Median(qs))
	s.Ns.Add(NCount(r.Seq))
	s.N++
}

func (s *Stats) bufferRead(r Record) error {
	if s.fq == nil {
		s.fq = fastq.NewWriter(&s.unal)
	}
	read := fastq.NewRead(r.Name, r.Seq, r.Qual)
	return s.fq.Write(&read)
}

// unaligned returns the buffered FASTQ text. The returned slice is valid
// until the next update or dropUnaligned.
func (s *Stats) unaligned() ([]byte, error) {
	if s.fq != nil {
		if err := s.fq.Flush(); err != nil {
			return nil, err
		}
	}
	return s.unal.Bytes(), nil
}

// dropUnaligned discards the buffered FASTQ text once it has been written.
func (s *Stats) dropUnaligned() { s.unal.Reset() }

// Buffered returns the number of bytes of FASTQ text waiting to be flushed.
func (s *Stats) Buffered() int {
	n := s.unal.Len()
	if s.fq != nil {
		n += s.fq.Buffered()
	}
	return n
}
