package survey

import (
	"sync"

	"github.com/grailbio/base/log"
	"github.com/grailbio/readsurvey/encoding/manifest"
)

// TaskQueue is an unbounded FIFO of jobs shared by the coordinator and the
// workers. It tracks outstanding work like a WaitGroup: every job Put must
// be taken by Get and then marked with Done before Wait returns.
type TaskQueue struct {
	mu   sync.Mutex
	cond *sync.Cond

	jobs []manifest.Job
	// unfinished counts jobs Put but not yet Done.
	unfinished int
	closed     bool
	err        error
}

// NewTaskQueue returns an empty queue.
func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put appends j to the queue. Put on an aborted queue is a no-op; Put on a
// closed queue panics.
func (q *TaskQueue) Put(j manifest.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return
	}
	if q.closed {
		log.Panicf("put %s on a closed task queue", j.Name)
	}
	q.jobs = append(q.jobs, j)
	q.unfinished++
	q.cond.Broadcast()
}

// Get removes and returns the job at the head of the queue, blocking while
// the queue is empty. It returns false once the queue is aborted, or closed
// and drained.
func (q *TaskQueue) Get() (manifest.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.jobs) == 0 && !q.closed && q.err == nil {
		q.cond.Wait()
	}
	if q.err != nil || len(q.jobs) == 0 {
		return manifest.Job{}, false
	}
	j := q.jobs[0]
	q.jobs[0] = manifest.Job{}
	q.jobs = q.jobs[1:]
	return j, true
}

// Done marks one job returned by Get as finished.
func (q *TaskQueue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.unfinished--
	if q.unfinished < 0 {
		log.Panicf("task queue: Done called more times than Put")
	}
	if q.unfinished == 0 {
		q.cond.Broadcast()
	}
}

// Wait blocks until every job Put so far is Done, or the queue is aborted.
// It returns the abort error, if any.
func (q *TaskQueue) Wait() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.unfinished > 0 && q.err == nil {
		q.cond.Wait()
	}
	return q.err
}

// Close marks the end of input. Idle getters are woken and return false
// once the remaining jobs are taken.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Abort fails the queue with err: pending jobs are dropped and every
// blocked Get and Wait returns. Only the first abort error is kept.
func (q *TaskQueue) Abort(err error) {
	q.mu.Lock()
	if q.err == nil {
		q.err = err
		q.jobs = nil
	}
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Err returns the abort error, or nil.
func (q *TaskQueue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Len returns the number of jobs waiting to be taken.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
