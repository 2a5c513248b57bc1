package sched

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"pipelined.dev/engine/internal/affinity"
)

// spinLimit is a number of busy iterations before the waiting thread starts
// yielding its processor.
const spinLimit = 256

// ErrClosed is returned when a closed pool is used.
var ErrClosed = errors.New("pool is closed")

// Pool is a fixed set of worker threads that execute jobs of one span at
// a time. The thread that calls Run takes part in the execution and then
// waits for the completion latch. All synchronization state is allocated
// in NewPool, Run does not allocate.
type Pool struct {
	run  func(job int)
	wake chan struct{}

	// span state, written by Run before workers are woken.
	jobs  []int
	total int64

	next    atomic.Int64
	done    atomic.Int64
	pending atomic.Int64

	workers int
	closed  bool
	wg      sync.WaitGroup
}

// Options of the pool.
type Options struct {
	// Workers is a number of worker threads. Zero means that every span is
	// executed by the calling thread.
	Workers int
	// Affinity lists cores for workers. If empty, workers are spread over
	// available cores. Ignored when Pin is false.
	Affinity []int
	// Pin enables pinning of worker threads.
	Pin bool
}

// NewPool starts workers. run is called with a job value taken from the
// slice passed to Run. It returns when all workers are started and pinned.
func NewPool(opts Options, run func(job int)) (*Pool, error) {
	if opts.Workers < 0 {
		return nil, fmt.Errorf("invalid number of workers: %d", opts.Workers)
	}
	p := Pool{
		run:     run,
		wake:    make(chan struct{}, opts.Workers),
		workers: opts.Workers,
	}
	started := make(chan error, opts.Workers)
	p.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		core := -1
		if opts.Pin {
			core = affinity.Pick(opts.Affinity, i)
		}
		go p.worker(core, started)
	}
	var errs []error
	for i := 0; i < opts.Workers; i++ {
		if err := <-started; err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		p.Close()
		return nil, errors.Join(errs...)
	}
	return &p, nil
}

// Workers returns number of worker threads.
func (p *Pool) Workers() int {
	return p.workers
}

// Run executes all jobs and returns when every one of them is done. Jobs
// are started in order but may complete in any order. Run must be called
// from a single thread.
func (p *Pool) Run(jobs []int) {
	n := int64(len(jobs))
	if n == 0 {
		return
	}
	p.jobs = jobs
	p.total = n
	p.next.Store(0)
	p.done.Store(0)

	// the calling thread executes one job itself.
	wake := min(int64(p.workers), n-1)
	for i := int64(0); i < wake; i++ {
		p.pending.Add(1)
		select {
		case p.wake <- struct{}{}:
		default:
			p.pending.Add(-1)
		}
	}

	p.work()

	// a woken worker holds a pending token until it finished reading span
	// state, so the next Run cannot race with a late worker.
	for spins := 0; p.done.Load() < n || p.pending.Load() != 0; spins++ {
		if spins >= spinLimit {
			runtime.Gosched()
		}
	}
}

// Close stops and joins all workers. It must not be called concurrently
// with Run.
func (p *Pool) Close() error {
	if p.closed {
		return ErrClosed
	}
	p.closed = true
	close(p.wake)
	p.wg.Wait()
	return nil
}

func (p *Pool) work() {
	for {
		i := p.next.Add(1) - 1
		if i >= p.total {
			return
		}
		p.run(p.jobs[i])
		p.done.Add(1)
	}
}

func (p *Pool) worker(core int, started chan<- error) {
	defer p.wg.Done()
	// the thread is never unlocked: when the worker exits, the runtime
	// terminates the thread together with its affinity mask.
	runtime.LockOSThread()
	var err error
	if core >= 0 {
		err = affinity.Pin(core)
	}
	started <- err
	for range p.wake {
		p.work()
		p.pending.Add(-1)
	}
}
