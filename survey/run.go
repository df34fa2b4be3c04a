package survey

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/readsurvey/encoding/manifest"
	"github.com/grailbio/readsurvey/stratify"
)

// JobError records a job that failed while the run continued.
type JobError struct {
	Job   manifest.Job
	State State
	Err   error
}

func (e JobError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Job.Name, e.State, e.Err)
}

// Result summarizes a finished run.
type Result struct {
	// Jobs is the number of jobs that completed.
	Jobs int
	// Skipped is the number of jobs whose output already existed.
	Skipped int
	// Failed lists jobs that failed when Opts.FailFast is off.
	Failed []JobError
	// Records is the number of SAM records folded into the run-wide
	// statistics.
	Records int64
	// Mapped is the number of those records without the unmapped flag.
	Mapped int64
	// Malformed is the number of SAM data lines skipped as malformed.
	Malformed int64
}

type runner struct {
	opts   Opts
	queue  *TaskQueue
	global *global
	cancel context.CancelFunc

	nMalformed int64
	mu         sync.Mutex
	result     Result
}

func (r *runner) malformed() { atomic.AddInt64(&r.nMalformed, 1) }

// work is the body of one worker: take jobs until the queue is closed and
// drained or aborted.
func (r *runner) work(ctx context.Context, id int) error {
	w := &worker{id: id, opts: &r.opts, global: r.global, run: r}
	log.Printf("worker %d started", id)
	for {
		job, ok := r.queue.Get()
		if !ok {
			log.Debug.Printf("worker %d exiting", id)
			return nil
		}
		log.Printf("worker %d handling %s", id, job.Name)
		state, err := w.handle(ctx, job)
		if err != nil {
			if r.opts.FailFast {
				log.Error.Printf("worker %d: job %s failed in state %s, aborting run: %v", id, job.Name, state, err)
				r.queue.Abort(err)
				r.cancel()
				return err
			}
			log.Error.Printf("worker %d: job %s failed in state %s: %v", id, job.Name, state, err)
			r.mu.Lock()
			r.result.Failed = append(r.result.Failed, JobError{Job: job, State: state, Err: err})
			r.mu.Unlock()
		} else {
			r.mu.Lock()
			if state == Skipped {
				r.result.Skipped++
			} else {
				r.result.Jobs++
			}
			r.mu.Unlock()
		}
		r.queue.Done()
	}
}

// Run processes jobs with opts.Workers concurrent workers and returns once
// every job is done. With opts.FailFast the first job failure cancels the
// remaining work and is returned.
func Run(ctx context.Context, opts Opts, jobs []manifest.Job) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	if opts.Fetcher == nil {
		opts.Fetcher = DefaultFetcher{}
	}
	if err := os.MkdirAll(opts.OutDir, 0777); err != nil {
		return Result{}, errors.E(err, "create output directory", opts.OutDir)
	}
	if opts.DownloadFirst {
		if err := os.MkdirAll(opts.DownloadDir, 0777); err != nil {
			return Result{}, errors.E(err, "create download directory", opts.DownloadDir)
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runID := uuid.New()
	start := time.Now()
	queue := NewTaskQueue()
	r := &runner{
		opts:  opts,
		queue: queue,
		global: &global{
			agg:      stratify.NewAggregator(),
			dir:      opts.OutDir,
			interval: int64(opts.FlushInterval),
			queue:    queue,
		},
		cancel: cancel,
	}
	log.Printf("run %s: %d jobs, %d workers, output in %s", runID, len(jobs), opts.Workers, opts.OutDir)

	poolDone := make(chan error, 1)
	go func() {
		poolDone <- traverse.Each(opts.Workers, func(i int) error {
			return r.work(ctx, i)
		})
	}()
	for _, job := range jobs {
		log.Debug.Printf("queueing %s", job.Name)
		queue.Put(job)
	}
	err := queue.Wait()
	queue.Close()
	if poolErr := <-poolDone; err == nil {
		err = poolErr
	}

	r.result.Malformed = atomic.LoadInt64(&r.nMalformed)
	r.result.Records = r.global.agg.Total()
	r.result.Mapped, _ = r.global.agg.MappedFraction()
	if err != nil {
		return r.result, err
	}
	if err := r.global.flush(ctx, "run %s: done in %v: %d jobs, %d skipped, %d failed, %d records (%s mapped), %d malformed",
		runID, time.Since(start), r.result.Jobs, r.result.Skipped, len(r.result.Failed),
		r.result.Records, percentOf(r.result.Mapped, r.result.Records), r.result.Malformed); err != nil {
		return r.result, err
	}
	return r.result, nil
}

func percentOf(a, b int64) string {
	if b == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%0.3f%%", 100*float64(a)/float64(b))
}

// RunManifest parses the manifest at path and runs its jobs.
func RunManifest(ctx context.Context, opts Opts, path string) (Result, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return Result{}, errors.E(err, "open manifest", path)
	}
	jobs, err := manifest.Parse(f.Reader(ctx))
	if e := f.Close(ctx); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return Result{}, errors.E(err, "parse manifest", path)
	}
	return Run(ctx, opts, jobs)
}
