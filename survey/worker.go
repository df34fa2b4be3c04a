package survey

import (
	"bufio"
	"context"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/readsurvey/encoding/manifest"
	"github.com/grailbio/readsurvey/stratify"
)

// State is the position of a job in its worker's state machine.
type State int

const (
	// Fetch downloads the read file, in download-first mode.
	Fetch State = iota
	// StreamAlign pipes reads through the aligner and aggregates its output.
	StreamAlign
	// Complete means the job's statistics are flushed and its SAM file closed.
	Complete
	// Skipped means the job's output already existed.
	Skipped
)

func (s State) String() string {
	switch s {
	case Fetch:
		return "FETCH"
	case StreamAlign:
		return "STREAM_ALIGN"
	case Complete:
		return "COMPLETE"
	case Skipped:
		return "SKIPPED"
	}
	return "UNKNOWN"
}

// global is the run-wide aggregator. mu serializes every update, every
// flush and every progress line, so periodic flushes land exactly on
// multiples of the flush interval.
type global struct {
	mu       sync.Mutex
	agg      *stratify.Aggregator
	dir      string
	interval int64
	queue    *TaskQueue
}

// update folds r into the run-wide statistics, flushing them when the
// record count reaches a multiple of the flush interval.
func (g *global) update(ctx context.Context, r stratify.Record, worker int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.agg.Update(r); err != nil {
		return err
	}
	if g.agg.Total()%g.interval != 0 {
		return nil
	}
	summary, err := g.agg.Flush(ctx, g.agg.Total(), g.dir)
	if err != nil {
		return err
	}
	log.Printf("%s\tworker %d\t%d tasks left", summary, worker, g.queue.Len())
	return nil
}

// flush writes the run-wide statistics and logs msg under the lock.
func (g *global) flush(ctx context.Context, format string, args ...interface{}) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.agg.Flush(ctx, g.agg.Total(), g.dir); err != nil {
		return err
	}
	log.Printf(format, args...)
	return nil
}

// samWriter saves the aligner's output for one job, optionally snappy
// compressed.
type samWriter struct {
	f   file.File
	buf *bufio.Writer
	sz  *snappy.Writer
}

func createSAM(ctx context.Context, path string, compress bool) (*samWriter, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "create", path)
	}
	w := &samWriter{f: f}
	if compress {
		w.sz = snappy.NewBufferedWriter(f.Writer(ctx))
		w.buf = bufio.NewWriterSize(w.sz, 1<<20)
	} else {
		w.buf = bufio.NewWriterSize(f.Writer(ctx), 1<<20)
	}
	return w, nil
}

func (w *samWriter) writeLine(line []byte) error {
	if _, err := w.buf.Write(line); err != nil {
		return err
	}
	return w.buf.WriteByte('\n')
}

func (w *samWriter) close(ctx context.Context) error {
	once := errors.Once{}
	once.Set(w.buf.Flush())
	if w.sz != nil {
		once.Set(w.sz.Close())
	}
	once.Set(w.f.Close(ctx))
	if err := once.Err(); err != nil {
		return errors.E(err, "close", w.f.Name())
	}
	return nil
}

// discard abandons the output so that a failed job leaves no SAM file
// behind.
func (w *samWriter) discard(ctx context.Context) {
	if w.sz != nil {
		_ = w.sz.Close()
	}
	w.f.Discard(ctx)
}

// worker processes jobs from the queue one at a time.
type worker struct {
	id     int
	opts   *Opts
	global *global
	run    *runner
}

// exists reports whether the file at path exists. file.Stat fails on local
// directories, so path must name a file.
func exists(ctx context.Context, path string) bool {
	_, err := file.Stat(ctx, path)
	return err == nil
}

func (w *worker) jobDir(job manifest.Job) string {
	return filepath.Join(w.opts.OutDir, job.Group, job.Name)
}

// handle runs one job through the state machine and returns its final
// state.
func (w *worker) handle(ctx context.Context, job manifest.Job) (State, error) {
	dir := w.jobDir(job)
	samPath := filepath.Join(dir, w.opts.samName())
	if w.opts.SkipExisting && exists(ctx, samPath) {
		log.Printf("worker %d: skipping %s: %s already exists", w.id, job.Name, samPath)
		return Skipped, w.global.flush(ctx, "worker %d finished %s (skipped)", w.id, job.Name)
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return Fetch, errors.E(err, "create job directory", dir)
	}

	var local string
	if w.opts.DownloadFirst {
		local = filepath.Join(w.opts.DownloadDir, path.Base(job.URL))
		if err := Download(ctx, w.opts.Fetcher, job.URL, local, w.opts.Retry); err != nil {
			return Fetch, err
		}
	}
	if err := w.streamAlign(ctx, job, dir, samPath, local); err != nil {
		return StreamAlign, err
	}
	if local != "" && !w.opts.KeepDownloads {
		if err := file.Remove(ctx, local); err != nil {
			log.Error.Printf("worker %d: remove %s: %v", w.id, local, err)
		}
	}
	return Complete, w.global.flush(ctx, "worker %d finished %s", w.id, job.Name)
}

func (w *worker) streamAlign(ctx context.Context, job manifest.Job, dir, samPath, local string) (err error) {
	raw, err := openSource(ctx, w.opts.Fetcher, job.URL, local)
	if err != nil {
		if local == "" {
			return &DownloadError{URL: job.URL, Attempts: 1, Err: err}
		}
		return err
	}
	once := errors.Once{}
	defer func() {
		once.Set(raw.Close())
		err = once.Err()
	}()
	src, err := decompress(raw, job.URL)
	if err != nil {
		once.Set(err)
		return
	}
	defer func() { once.Set(src.Close()) }()

	sam, err := createSAM(ctx, samPath, w.opts.CompressSAM)
	if err != nil {
		once.Set(err)
		return
	}
	var (
		agg      = stratify.NewAggregator()
		interval = int64(w.opts.FlushInterval)
		n        int64
	)
	log.Printf("worker %d: aligning %s", w.id, job)
	alignErr := align(ctx, w.opts, src, func(line []byte) error {
		if err := sam.writeLine(line); err != nil {
			return errors.E(err, "write", samPath)
		}
		if len(line) > 0 && line[0] == '@' {
			return nil
		}
		r, err := stratify.ParseRecord(line)
		if err == nil {
			err = w.global.update(ctx, r, w.id)
		}
		if err != nil {
			if _, ok := err.(*stratify.MalformedError); ok {
				log.Error.Printf("worker %d: %s: skipping record: %v", w.id, job.Name, err)
				w.run.malformed()
				return nil
			}
			return err
		}
		if err := agg.Update(r); err != nil {
			return err
		}
		n++
		if n%interval == 0 {
			if _, err := agg.Flush(ctx, n, dir); err != nil {
				return err
			}
		}
		return nil
	})
	if ie, ok := alignErr.(*inputError); ok {
		if local == "" {
			alignErr = &DownloadError{URL: job.URL, Attempts: 1, Err: ie.err}
		} else {
			alignErr = errors.E(ie.err, "read", local)
		}
	}
	if alignErr != nil {
		sam.discard(ctx)
		once.Set(alignErr)
		return
	}
	once.Set(sam.close(ctx))
	if once.Err() != nil {
		return
	}
	summary, ferr := agg.Flush(ctx, n, dir)
	once.Set(ferr)
	log.Debug.Printf("worker %d: %s: %d records\t%s", w.id, job.Name, n, summary)
	return
}
