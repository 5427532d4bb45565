package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/sdelrio0/xyflow-flow/pkg/flow"
)

// ErrStopped is returned for batches enqueued on a stopped scheduler
var ErrStopped = errors.New("scheduler: stopped")

// ApplyFunc applies one coalesced change set
type ApplyFunc func(cs flow.ChangeSet)

// ErrorHandler handles panics raised by the applier.
// Returns true to keep the loop running, false to stop the scheduler.
type ErrorHandler func(cs flow.ChangeSet, err interface{}) bool

// Job is a batch waiting in the queue
type Job struct {
	changes flow.ChangeSet
	produce ProduceFunc
	done    chan error
	barrier bool
}

// ProduceFunc builds a change set on the writer goroutine, after every
// batch queued before it has been applied
type ProduceFunc func() flow.ChangeSet

// Done is closed after the job's batch has been applied. It receives an
// error first when the batch could not be applied.
func (j *Job) Done() <-chan error {
	return j.done
}

// debugLog is set by debug.EnableLogging
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// Scheduler serializes change batches from many producers onto a single
// writer goroutine
type Scheduler struct {
	mu      sync.Mutex
	pending []*Job
	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	running atomic.Bool

	apply   ApplyFunc
	onError ErrorHandler

	applied atomic.Uint64
	batches atomic.Uint64
}

// NewScheduler creates a scheduler that hands batches to apply
func NewScheduler(apply ApplyFunc) *Scheduler {
	return &Scheduler{
		pending: make([]*Job, 0, 64),
		wake:    make(chan struct{}, 1),
		apply:   apply,
	}
}

// SetErrorHandler sets the handler called when the applier panics
func (s *Scheduler) SetErrorHandler(handler ErrorHandler) {
	s.onError = handler
}

// Enqueue queues a batch. The returned job completes once the batch has
// been applied.
func (s *Scheduler) Enqueue(cs flow.ChangeSet) *Job {
	return s.push(&Job{changes: cs, done: make(chan error, 1)})
}

// EnqueueFunc queues a producer. Its change set is computed and applied by
// the writer, so it reads the state left by the batches queued before it.
func (s *Scheduler) EnqueueFunc(produce ProduceFunc) *Job {
	return s.push(&Job{produce: produce, done: make(chan error, 1)})
}

func (s *Scheduler) push(job *Job) *Job {
	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		job.done <- ErrStopped
		close(job.done)
		return job
	}
	s.pending = append(s.pending, job)
	n := len(s.pending)
	s.mu.Unlock()

	if debugLog != nil {
		debugLog("[Scheduler] Enqueued batch,", n, "pending")
	}

	select {
	case s.wake <- struct{}{}:
	default:
		// Loop already signalled, it will pick this job up with the rest
	}
	return job
}

// Flush blocks until every batch enqueued before the call has been applied
func (s *Scheduler) Flush(ctx context.Context) error {
	job := s.push(&Job{done: make(chan error, 1), barrier: true})
	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start begins the scheduler loop
func (s *Scheduler) Start() {
	if s.running.CompareAndSwap(false, true) {
		if debugLog != nil {
			debugLog("[Scheduler] Starting scheduler loop")
		}
		s.stop = make(chan struct{})
		s.stopped = make(chan struct{})
		go s.loop(s.stop, s.stopped)
	} else {
		if debugLog != nil {
			debugLog("[Scheduler] Scheduler already running")
		}
	}
}

// Stop stops the loop after it has applied what is already queued
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stop)
	<-s.stopped
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// Pending returns the number of queued jobs
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Applied returns the number of change batches applied so far
func (s *Scheduler) Applied() uint64 {
	return s.applied.Load()
}

// Runs returns how many times the applier has been invoked. Coalescing
// keeps it at or below Applied.
func (s *Scheduler) Runs() uint64 {
	return s.batches.Load()
}

// loop is the main scheduler event loop
func (s *Scheduler) loop(stop, stopped chan struct{}) {
	defer close(stopped)
	if debugLog != nil {
		debugLog("[Scheduler] Loop started")
	}
	for {
		select {
		case <-s.wake:
			s.drain()
		case <-stop:
			s.drain()
			s.reject()
			if debugLog != nil {
				debugLog("[Scheduler] Loop ended")
			}
			return
		}
	}
}

// drain takes every pending job and applies runs of plain batches as one
// coalesced batch. Node and edge changes keep their arrival order, which
// matches applying the batches one after another. A producer job ends the
// current run so it sees everything queued before it.
func (s *Scheduler) drain() {
	s.mu.Lock()
	jobs := s.pending
	s.pending = make([]*Job, 0, cap(jobs))
	s.mu.Unlock()

	if len(jobs) == 0 {
		return
	}

	var (
		merged flow.ChangeSet
		group  []*Job
	)
	flush := func() {
		if len(group) == 0 {
			return
		}
		s.finish(group, s.run(merged))
		merged, group = flow.ChangeSet{}, nil
	}

	for _, j := range jobs {
		if j.produce != nil {
			flush()
			cs, err := s.produceChanges(j.produce)
			if err == nil {
				err = s.run(cs)
			}
			s.finish([]*Job{j}, err)
			continue
		}
		if !j.barrier {
			merged = merged.Merge(j.changes)
		}
		group = append(group, j)
	}
	flush()
}

// finish completes jobs with the outcome of the batch they were part of
func (s *Scheduler) finish(jobs []*Job, err error) {
	var count uint64
	for _, j := range jobs {
		if !j.barrier {
			count++
			if err != nil {
				j.done <- err
			}
		}
		close(j.done)
	}
	if count > 0 {
		s.applied.Add(count)
	}
	if debugLog != nil {
		debugLog("[Scheduler] Finished", count, "batches")
	}
}

// produceChanges runs a producer with panic recovery
func (s *Scheduler) produceChanges(produce ProduceFunc) (cs flow.ChangeSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = s.handleApplyError(flow.ChangeSet{}, r)
		}
	}()
	return produce(), nil
}

// run calls the applier with panic recovery
func (s *Scheduler) run(cs flow.ChangeSet) (err error) {
	if cs.Empty() || s.apply == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = s.handleApplyError(cs, r)
		}
	}()
	s.batches.Add(1)
	s.apply(cs)
	return nil
}

// handleApplyError handles a panic raised while applying a batch
func (s *Scheduler) handleApplyError(cs flow.ChangeSet, r interface{}) error {
	// Create error with stack trace
	errorMsg := fmt.Sprintf("apply panic: %v\n%s", r, debug.Stack())

	shouldContinue := false
	if s.onError != nil {
		shouldContinue = s.onError(cs, errorMsg)
	}

	if !shouldContinue && s.running.CompareAndSwap(true, false) {
		if debugLog != nil {
			debugLog("[Scheduler] Stopping after apply panic")
		}
		close(s.stop)
	}
	return fmt.Errorf("scheduler: %v", r)
}

// reject fails jobs that raced with Stop
func (s *Scheduler) reject() {
	s.mu.Lock()
	jobs := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, j := range jobs {
		j.done <- ErrStopped
		close(j.done)
	}
}
