package stratify

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/grailbio/hts/sam"
)

// QualOffset is subtracted from a quality character to get its Phred value.
const QualOffset = 33

// minFields is the number of SAM columns up to and including QUAL.
const minFields = 11

// Record holds the fields of one SAM alignment line that the statistics
// depend on.
type Record struct {
	Name string
	Flag int
	Seq  string
	Qual string
}

// Key returns the stratum the record belongs to.
func (r Record) Key() Key { return Key{Flag: r.Flag, Len: len(r.Seq)} }

// Unaligned reports whether the aligner failed to align the read. Only a
// flag of exactly 4 counts; secondary or supplementary records with the
// unmapped bit set land in their own strata.
func (r Record) Unaligned() bool { return sam.Flags(r.Flag) == sam.Unmapped }

// MalformedError is returned for a SAM data line that cannot be folded into
// the statistics.
type MalformedError struct {
	Line   string
	Reason string
}

func (e *MalformedError) Error() string {
	line := e.Line
	if len(line) > 80 {
		line = line[:80] + "..."
	}
	return fmt.Sprintf("malformed SAM record (%s): %q", e.Reason, line)
}

// ParseRecord parses one tab-separated SAM data line. The line may carry a
// trailing newline. Lines with fewer than 11 columns or a non-integer FLAG
// yield a *MalformedError.
func ParseRecord(line []byte) (Record, error) {
	line = bytes.TrimRight(line, "\r\n")
	// Only the first 11 columns matter; the optional tags are left unsplit.
	cols := bytes.SplitN(line, []byte{'\t'}, minFields+1)
	if len(cols) < minFields {
		return Record{}, &MalformedError{Line: string(line), Reason: fmt.Sprintf("%d columns", len(cols))}
	}
	flag, err := strconv.Atoi(string(cols[1]))
	if err != nil {
		return Record{}, &MalformedError{Line: string(line), Reason: "bad flag"}
	}
	return Record{
		Name: string(cols[0]),
		Flag: flag,
		Seq:  string(cols[9]),
		Qual: string(cols[10]),
	}, nil
}

// Quals decodes an offset-33 quality string into Phred values.
func Quals(qual string) ([]int, error) {
	if len(qual) == 0 {
		return nil, &MalformedError{Reason: "empty quality string"}
	}
	qs := make([]int, len(qual))
	for i := 0; i < len(qual); i++ {
		q := int(qual[i]) - QualOffset
		if q < 0 {
			return nil, &MalformedError{Line: qual, Reason: fmt.Sprintf("quality char %q below offset", qual[i])}
		}
		qs[i] = q
	}
	return qs, nil
}

// Mean returns the mean of qs rounded half away from zero. qs must not be
// empty.
func Mean(qs []int) int {
	sum := 0
	for _, q := range qs {
		sum += q
	}
	return int(math.Round(float64(sum) / float64(len(qs))))
}

// Median returns the upper median of qs, i.e. the element at index len/2 of
// the sorted values. qs must not be empty and is not modified.
func Median(qs []int) int {
	sorted := make([]int, len(qs))
	copy(sorted, qs)
	sort.Ints(sorted)
	return sorted[len(sorted)/2]
}

// NCount counts the ambiguous bases ('N' or '.') in seq.
func NCount(seq string) int {
	n := 0
	for i := 0; i < len(seq); i++ {
		if seq[i] == 'N' || seq[i] == '.' {
			n++
		}
	}
	return n
}
