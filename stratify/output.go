package stratify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// Output file names, relative to the flush directory.
const (
	BasicsFile     = "basics.tsv"
	MediansFile    = "medians.tsv"
	MeansFile      = "means.tsv"
	NsFile         = "nns.tsv"
	QualByCycFile  = "qual_by_cyc.tsv"
	UnalignedFile  = "unal.fastq"
	unalignedByLen = "unal_%d.fastq"
)

// UnalignedLenFile returns the name of the FASTQ file holding unaligned reads
// of length n.
func UnalignedLenFile(n int) string { return fmt.Sprintf(unalignedByLen, n) }

// outputs is the set of files written by one Aggregator.Flush.
type outputs struct {
	dir   string
	files []file.File
	// TSV writers, one per file in tsvNames order.
	basics, medians, means, nns, qbc *tsv.Writer
	unal                             *os.File
	err                              errors.Once
}

var tsvNames = []string{BasicsFile, MediansFile, MeansFile, NsFile, QualByCycFile}

func createOutputs(ctx context.Context, dir string) (*outputs, error) {
	o := &outputs{dir: dir}
	writers := make([]*tsv.Writer, len(tsvNames))
	for i, name := range tsvNames {
		path := filepath.Join(dir, name)
		f, err := file.Create(ctx, path)
		if err != nil {
			o.abort(ctx)
			return nil, errors.E(err, "create", path)
		}
		o.files = append(o.files, f)
		writers[i] = tsv.NewWriter(f.Writer(ctx))
	}
	o.basics, o.medians, o.means, o.nns, o.qbc = writers[0], writers[1], writers[2], writers[3], writers[4]
	// unal.fastq exists after every flush, even when nothing failed to align.
	var err error
	if o.unal, err = openAppend(filepath.Join(dir, UnalignedFile)); err != nil {
		o.abort(ctx)
		return nil, err
	}
	return o, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0666)
	if err != nil {
		return nil, errors.E(err, "open for append", path)
	}
	return f, nil
}

func (o *outputs) writeStratum(k Key, s *Stats) {
	flag, n := int64(k.Flag), int64(k.Len)
	o.basics.WriteInt64(flag)
	o.basics.WriteInt64(n)
	o.basics.WriteInt64(s.N)
	o.err.Set(o.basics.EndLine())

	hist := func(w *tsv.Writer, t *FreqTable) {
		t.Each(func(i int, count int64) {
			w.WriteInt64(flag)
			w.WriteInt64(n)
			w.WriteInt64(int64(i))
			w.WriteInt64(count)
			o.err.Set(w.EndLine())
		})
	}
	hist(o.nns, &s.Ns)
	hist(o.means, &s.Means)
	hist(o.medians, &s.Medians)
	for cycle := range s.QualsByCycle {
		s.QualsByCycle[cycle].Each(func(q int, count int64) {
			o.qbc.WriteInt64(flag)
			o.qbc.WriteInt64(n)
			o.qbc.WriteInt64(int64(cycle))
			o.qbc.WriteInt64(int64(q))
			o.qbc.WriteInt64(count)
			o.err.Set(o.qbc.EndLine())
		})
	}
}

// appendUnaligned moves the stratum's buffered reads to unal.fastq and to the
// per-length file. The reads stay buffered if either write fails.
func (o *outputs) appendUnaligned(k Key, s *Stats) error {
	buf, err := s.unaligned()
	if err != nil {
		return err
	}
	path := filepath.Join(o.dir, UnalignedLenFile(k.Len))
	byLen, err := openAppend(path)
	if err != nil {
		return err
	}
	once := errors.Once{}
	if len(buf) > 0 {
		_, err = o.unal.Write(buf)
		once.Set(err)
		_, err = byLen.Write(buf)
		once.Set(err)
	}
	once.Set(byLen.Close())
	if err := once.Err(); err != nil {
		return errors.E(err, "append unaligned reads", path)
	}
	s.dropUnaligned()
	return nil
}

func (o *outputs) close(ctx context.Context) error {
	for _, w := range []*tsv.Writer{o.basics, o.medians, o.means, o.nns, o.qbc} {
		o.err.Set(w.Flush())
	}
	for _, f := range o.files {
		o.err.Set(f.Close(ctx))
	}
	o.err.Set(o.unal.Close())
	if err := o.err.Err(); err != nil {
		return errors.E(err, "flush statistics to", o.dir)
	}
	return nil
}

// abort releases whatever has been opened so far, ignoring errors. The
// TSV files are discarded so that earlier outputs stay in place.
func (o *outputs) abort(ctx context.Context) {
	for _, f := range o.files {
		f.Discard(ctx)
	}
	if o.unal != nil {
		_ = o.unal.Close()
	}
}
