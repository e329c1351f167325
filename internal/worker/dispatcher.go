package worker

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDispatcherBusy reports that the intake queue is full. Callers surface
// it as a retryable condition.
var ErrDispatcherBusy = errors.New("dispatcher queue full")

// Job is one unit of chat work bound to a session. Jobs for the same
// session run one at a time in submission order; jobs for different
// sessions run in parallel on the pool.
type Job struct {
	Ctx       context.Context
	SessionID string
	Run       func(ctx context.Context) (string, error)
	resultCh  chan Result
	stop      bool // pool-internal shutdown signal
}

// Result carries the answer text or the terminal error of a job.
type Result struct {
	Text string
	Err  error
}

type DispatcherConfig struct {
	MinWorkers        int
	MaxWorkers        int
	QueueSize         int
	WorkerIdleTimeout time.Duration
}

type sessionQueue struct {
	jobs     []Job
	enqueued bool
}

type Dispatcher struct {
	pool     *jobChannelPool
	jobQueue chan Job
	wake     chan struct{}

	mu        sync.Mutex
	queues    map[string]*sessionQueue // pending jobs per session
	ready     *list.List               // LRU queue of session ids with pending work
	positions map[string]*list.Element
	running   map[string]struct{} // sessions with a job in flight
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 1
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}

	d := &Dispatcher{
		jobQueue:  make(chan Job, cfg.QueueSize),
		wake:      make(chan struct{}, 1),
		queues:    make(map[string]*sessionQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		running:   make(map[string]struct{}),
	}
	d.pool = newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.WorkerIdleTimeout, d)

	for i := 0; i < cfg.MinWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Do submits the job and blocks until its result is available or the
// caller's context is done. A full intake queue fails fast with
// ErrDispatcherBusy instead of queueing unbounded work.
func (d *Dispatcher) Do(job Job) (string, error) {
	if job.Ctx == nil {
		job.Ctx = context.Background()
	}
	job.resultCh = make(chan Result, 1)
	select {
	case d.jobQueue <- job:
	default:
		return "", ErrDispatcherBusy
	}
	select {
	case res := <-job.resultCh:
		return res.Text, res.Err
	case <-job.Ctx.Done():
		return "", job.Ctx.Err()
	}
}

func (d *Dispatcher) run() {
	for {
		if !d.dispatchOne() {
			// nothing dispatchable: wait for new work or a completion
			select {
			case job := <-d.jobQueue:
				d.enqueueJob(job)
			case <-d.wake:
			}
			continue
		}
		select {
		case job := <-d.jobQueue:
			d.enqueueJob(job)
		default:
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.SessionID]
	if q == nil {
		q = &sessionQueue{}
		d.queues[job.SessionID] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	elem := d.ready.PushBack(job.SessionID)
	d.positions[job.SessionID] = elem
}

// dispatchOne hands the next job of the least recently served session to a
// worker, skipping sessions that already have a job in flight.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	for elem := d.ready.Front(); elem != nil; elem = elem.Next() {
		sessionID := elem.Value.(string)
		if _, busy := d.running[sessionID]; busy {
			continue
		}
		q := d.queues[sessionID]
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		d.running[sessionID] = struct{}{}
		if len(q.jobs) == 0 {
			q.enqueued = false
			d.ready.Remove(elem)
			delete(d.positions, sessionID)
			delete(d.queues, sessionID)
		} else {
			d.ready.MoveToBack(elem)
		}
		d.mu.Unlock()

		workerChan := d.pool.acquire()
		debugLog("[dispatcher] assign job for session %s", sessionID)
		workerChan <- job
		return true
	}
	d.mu.Unlock()
	return false
}

// complete is called by a worker after a job finishes so the session's next
// queued job becomes dispatchable.
func (d *Dispatcher) complete(sessionID string) {
	d.mu.Lock()
	delete(d.running, sessionID)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}
