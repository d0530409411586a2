package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool manages a fixed number of workers that execute jobs concurrently
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	queueOnce  sync.Once
	closeOnce  sync.Once
}

// NewPool creates a new worker pool bound to ctx
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    make(chan Result, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker goroutines
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			// A finished result is always delivered, even when the job itself
			// cancelled the pool; collect drains until every worker exits.
			p.results <- job.Execute(p.ctx)
		}
	}
}

// Submit enqueues a job. It returns false if the pool was cancelled first.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- job:
		return true
	}
}

func (p *Pool) closeQueue() {
	p.queueOnce.Do(func() {
		close(p.jobQueue)
	})
}

func (p *Pool) collect() []Result {
	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []Result
	for result := range p.results {
		results = append(results, result)
	}
	p.cancelFunc()
	return results
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

type indexedJob struct {
	index int
	job   Job
}

func (j *indexedJob) Execute(ctx context.Context) Result {
	return &indexedResult{index: j.index, result: j.job.Execute(ctx)}
}

type indexedResult struct {
	index  int
	result Result
}

func (r *indexedResult) GetError() error {
	if r.result == nil {
		return nil
	}
	return r.result.GetError()
}

// CancelledResult stands in for jobs that never ran because the context ended
type CancelledResult struct {
	Err error
}

// GetError returns the cancellation cause
func (r *CancelledResult) GetError() error {
	return r.Err
}

// Run executes jobs on a pool of the given size and returns their results in
// submission order. Jobs skipped due to cancellation yield a CancelledResult.
func Run(ctx context.Context, workers int, jobs []Job) []Result {
	out := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return out
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	pool := NewPool(ctx, workers)
	pool.Start()

	go func() {
		defer pool.closeQueue()
		for i, job := range jobs {
			if !pool.Submit(&indexedJob{index: i, job: job}) {
				return
			}
		}
	}()

	for _, r := range pool.collect() {
		ir := r.(*indexedResult)
		out[ir.index] = ir.result
	}

	for i := range out {
		if out[i] == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &CancelledResult{Err: err}
		}
	}
	return out
}
