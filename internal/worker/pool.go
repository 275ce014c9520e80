package worker

import (
	"errors"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"go-flying-image/internal/logger"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Pool runs background jobs on a fixed set of goroutines
type Pool struct {
	workers  int
	jobQueue chan func()
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once

	mu     sync.RWMutex
	closed bool
	// submitters counts Submit calls between the closed check and the send
	submitters sync.WaitGroup
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Pool{
		workers:  workers,
		jobQueue: make(chan func(), workers*16),
		done:     make(chan struct{}),
	}
}

// Start initializes and starts all workers in the pool
func (p *Pool) Start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			go p.worker()
		}
	})
}

func (p *Pool) worker() {
	for job := range p.jobQueue {
		p.run(job)
	}
}

func (p *Pool) run(job func()) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"panic": r,
			}).Error("Worker job panicked")
		}
	}()
	job()
}

// Submit queues a job. It blocks while the queue is full, until a worker
// frees a slot or the pool is closed.
func (p *Pool) Submit(job func()) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	p.submitters.Add(1)
	p.wg.Add(1)
	p.mu.RUnlock()
	defer p.submitters.Done()

	select {
	case p.jobQueue <- job:
		return nil
	case <-p.done:
		p.wg.Done()
		return ErrPoolClosed
	}
}

// Wait waits for all submitted jobs to complete
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close stops accepting jobs and waits for queued ones to finish
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	p.Start()
	p.submitters.Wait()
	close(p.jobQueue)
	p.wg.Wait()
}
