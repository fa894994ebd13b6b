package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/logger"
)

// Handler executes one job type. Handlers must be idempotent: a retried or
// recovered job may rerun work that already partially happened.
type Handler func(ctx context.Context, job *Job) error

// Pool polls the queue and dispatches claimed jobs to their handlers.
type Pool struct {
	queue    *Queue
	handlers map[string]Handler
	workers  int
	interval time.Duration
}

func NewPool(queue *Queue, policy *Policy, handlers map[string]Handler) *Pool {
	return &Pool{
		queue:    queue,
		handlers: handlers,
		workers:  policy.WorkerCount,
		interval: time.Duration(policy.PollInterval) * time.Second,
	}
}

// Run blocks until ctx is cancelled. Jobs left running by a previous
// process are recovered to pending before polling starts.
func (p *Pool) Run(ctx context.Context) {
	if n, err := p.queue.Recover(); err != nil {
		logger.Error("job recovery failed", "error", err)
	} else if n > 0 {
		logger.Info("recovered interrupted jobs", "count", n)
	}

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.loop(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) loop(ctx context.Context, worker int) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Drain everything runnable before sleeping again.
		for {
			job, err := p.queue.ClaimNext(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("job claim failed", "worker", worker, "error", err)
				}
				break
			}
			if job == nil {
				break
			}
			p.execute(ctx, worker, job)
		}
	}
}

func (p *Pool) execute(ctx context.Context, worker int, job *Job) {
	handler, ok := p.handlers[job.Type]
	if !ok {
		_ = p.queue.Fail(job.ID, fmt.Errorf("no handler for job type %q", job.Type))
		return
	}

	start := time.Now()
	err := handler(ctx, job)
	if err != nil {
		logger.Warn("job failed",
			"worker", worker, "job", job.ID, "type", job.Type,
			"attempt", job.Attempts, "error", err)
		if ferr := p.queue.Fail(job.ID, err); ferr != nil {
			logger.Error("job state update failed", "job", job.ID, "error", ferr)
		}
		return
	}

	logger.Debug("job done",
		"worker", worker, "job", job.ID, "type", job.Type,
		"elapsed", time.Since(start).Round(time.Millisecond))
	if err := p.queue.Complete(job.ID); err != nil {
		logger.Error("job state update failed", "job", job.ID, "error", err)
	}
}
