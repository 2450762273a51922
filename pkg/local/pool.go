package local

import (
	"context"
	"sync"
)

type Task func(ctx context.Context) error

// Pool runs tasks on a fixed number of goroutines. The first task error
// cancels the context handed to the remaining tasks.
type Pool struct {
	numWorkers int
	tasks      chan Task
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	mu  sync.Mutex
	err error
}

func NewPool(ctx context.Context, numWorkers int) *Pool {
	ctx, cancel := context.WithCancel(ctx)
	return &Pool{
		numWorkers: max(numWorkers, 1),
		tasks:      make(chan Task),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (p *Pool) Start() {
	for range p.numWorkers {
		p.wg.Go(func() {
			for task := range p.tasks {
				if p.ctx.Err() != nil {
					continue
				}
				if err := task(p.ctx); err != nil {
					p.fail(err)
				}
			}
		})
	}
}

func (p *Pool) Submit(task Task) {
	p.tasks <- task
}

// Wait closes the pool, waits for running tasks and returns the first task
// error, or the parent context's error if tasks were skipped because of it.
func (p *Pool) Wait() error {
	close(p.tasks)
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = p.ctx.Err()
	}
	p.cancel()
	return p.err
}

func (p *Pool) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
		p.cancel()
	}
}
