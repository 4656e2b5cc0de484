package core

// dispatcher.go is the concurrency backbone. All storage and parse work
// runs on dispatcher workers, never on the caller's foreground path.
//
// Two pools with different rules:
//
//   - one writer worker drains the write queue in submission order, so
//     writer operations on the same store never interleave transactions;
//   - readWorkers read workers drain the read queue concurrently, with the
//     store handle's RWMutex still excluding them from active writers.
//
// Submit never blocks: queues are unbounded and each completion is
// delivered on its own buffered channel. There is no hard cancellation of
// an in-flight writer; completions carry the caller's generation token so
// stale results can be discarded without touching storage state.

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Task identifies one submitted unit of work.
type Task struct {
	ID   uuid.UUID `json:"id"`
	Gen  uint64    `json:"gen"`
	Kind string    `json:"kind"`
}

// Completion is delivered exactly once per submitted task.
type Completion struct {
	Task  Task
	Value any
	Err   error
}

type taskFn func(ctx context.Context) (any, error)

type job struct {
	ctx  context.Context
	task Task
	fn   taskFn
	done chan Completion
}

// Dispatcher executes submitted work on background workers.
type Dispatcher struct {
	writes *jobQueue
	reads  *jobQueue
	group  *errgroup.Group
}

// NewDispatcher starts the writer worker plus readWorkers read workers.
func NewDispatcher(readWorkers int) *Dispatcher {
	if readWorkers < 1 {
		readWorkers = 1
	}

	d := &Dispatcher{
		writes: newJobQueue(),
		reads:  newJobQueue(),
		group:  &errgroup.Group{},
	}

	d.group.Go(func() error {
		d.drain(d.writes)
		return nil
	})
	for i := 0; i < readWorkers; i++ {
		d.group.Go(func() error {
			d.drain(d.reads)
			return nil
		})
	}
	return d
}

// SubmitWrite enqueues a writer operation (import, delete, rename). Writes
// are executed strictly in submission order. The caller's ctx is handed to
// the worker unchanged, deadlines included; callers that must survive a
// client disconnect detach the cancellation themselves before submitting.
func (d *Dispatcher) SubmitWrite(ctx context.Context, task Task, fn taskFn) <-chan Completion {
	return d.submit(d.writes, ctx, task, fn)
}

// SubmitRead enqueues a read operation (page query, listing). Reads run
// concurrently with each other and honor ctx cancellation, since they are
// side-effect free.
func (d *Dispatcher) SubmitRead(ctx context.Context, task Task, fn taskFn) <-chan Completion {
	return d.submit(d.reads, ctx, task, fn)
}

func (d *Dispatcher) submit(q *jobQueue, ctx context.Context, task Task, fn taskFn) <-chan Completion {
	done := make(chan Completion, 1)
	j := job{ctx: ctx, task: task, fn: fn, done: done}
	if !q.push(j) {
		done <- Completion{Task: task, Err: errorf(KindStorage, "submit", "dispatcher closed")}
	}
	return done
}

func (d *Dispatcher) drain(q *jobQueue) {
	for {
		j, ok := q.pop()
		if !ok {
			return
		}
		value, err := j.fn(j.ctx)
		j.done <- Completion{Task: j.task, Value: value, Err: err}
	}
}

// Close stops accepting work, lets queued jobs finish, and waits for the
// workers to exit.
func (d *Dispatcher) Close() error {
	d.writes.close()
	d.reads.close()
	return d.group.Wait()
}

// jobQueue is an unbounded FIFO. A single consumer preserves submission
// order; multiple consumers share the queue without ordering guarantees.
type jobQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []job
	closed bool
}

func newJobQueue() *jobQueue {
	q := &jobQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends a job, reporting false if the queue is closed.
func (q *jobQueue) push(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, j)
	q.cond.Signal()
	return true
}

// pop blocks until a job is available or the queue is closed and drained.
func (q *jobQueue) pop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return job{}, false
	}
	j := q.items[0]
	q.items = q.items[1:]
	return j, true
}

func (q *jobQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
