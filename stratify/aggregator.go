package stratify

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// Aggregator maps strata to their running statistics.
type Aggregator struct {
	strata map[Key]*Stats
	total  int64
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{strata: make(map[Key]*Stats)}
}

// Update folds r into its stratum, creating the stratum on first use. If
// the quality string cannot be decoded the aggregator is left unchanged and
// a *MalformedError is returned.
func (a *Aggregator) Update(r Record) error {
	qs, err := Quals(r.Qual)
	if err != nil {
		return err
	}
	k := r.Key()
	s, ok := a.strata[k]
	if !ok {
		s = &Stats{}
		a.strata[k] = s
	}
	s.update(r, qs)
	a.total++
	if r.Unaligned() {
		return s.bufferRead(r)
	}
	return nil
}

// Total returns the number of records folded in so far.
func (a *Aggregator) Total() int64 { return a.total }

// Len returns the number of strata.
func (a *Aggregator) Len() int { return len(a.strata) }

// Get returns the statistics for k, or nil if no record had that key.
func (a *Aggregator) Get(k Key) *Stats { return a.strata[k] }

// Keys returns the strata in (flag, length) order.
func (a *Aggregator) Keys() []Key {
	keys := make([]Key, 0, len(a.strata))
	for k := range a.strata {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// MappedFraction returns the number of records without the unmapped bit set,
// and the total number of records.
func (a *Aggregator) MappedFraction() (mapped, total int64) {
	for k, s := range a.strata {
		if sam.Flags(k.Flag)&sam.Unmapped == 0 {
			mapped += s.N
		}
	}
	return mapped, a.total
}

// Summary returns one "flag:length:count:percent" entry per stratum, joined
// by tabs, where percent is relative to total.
func (a *Aggregator) Summary(total int64) string {
	keys := a.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		n := a.strata[k].N
		parts[i] = fmt.Sprintf("%d:%d:%d:%s", k.Flag, k.Len, n, percent(n, total))
	}
	return strings.Join(parts, "\t")
}

func percent(a, b int64) string {
	if b == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%0.3f%%", 100*float64(a)/float64(b))
}

// Flush writes every stratum under dir, creating dir if needed, and returns
// the Summary relative to total. The TSV files are replaced; buffered
// unaligned reads are appended to unal.fastq and unal_<len>.fastq and then
// dropped from memory.
func (a *Aggregator) Flush(ctx context.Context, total int64, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return "", errors.E(err, "create output directory", dir)
	}
	out, err := createOutputs(ctx, dir)
	if err != nil {
		return "", err
	}
	for _, k := range a.Keys() {
		s := a.strata[k]
		if sam.Flags(k.Flag) == sam.Unmapped {
			if err := out.appendUnaligned(k, s); err != nil {
				out.abort(ctx)
				return "", err
			}
		}
		out.writeStratum(k, s)
	}
	if err := out.close(ctx); err != nil {
		return "", err
	}
	return a.Summary(total), nil
}
