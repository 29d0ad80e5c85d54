package scheduler

import "sync"

// Pool is a fixed set of goroutines executing submitted jobs.
type Pool struct {
	size      int
	jobs      chan func()
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPool starts size workers. The job buffer holds size entries so a
// submitter that respects the admission ceiling never waits.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		size: size,
		jobs: make(chan func(), size),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// Submit hands a job to the pool. It does not wait for the job to run.
// Submit must not be called after Close.
func (p *Pool) Submit(job func()) {
	p.jobs <- job
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Close stops accepting jobs and waits for submitted ones to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
