package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"thirdcoast.systems/haul/internal/broker"
)

type Queue interface {
	Reserve(ctx context.Context, timeout time.Duration) (*broker.Job, error)
	Complete(ctx context.Context, job *broker.Job, result string) error
	Fail(ctx context.Context, job *broker.Job, reason string) error
}

type Handler interface {
	Process(ctx context.Context, job broker.CapturePayload) (*Outcome, error)
}

// Pool runs a fixed number of workers. Each worker holds one job at a time
// and finishes it before reserving the next.
type Pool struct {
	queue       Queue
	handler     Handler
	concurrency int
	poll        time.Duration
	retryWait   time.Duration
}

func NewPool(queue Queue, handler Handler, concurrency int, poll time.Duration) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Pool{
		queue:       queue,
		handler:     handler,
		concurrency: concurrency,
		poll:        poll,
		retryWait:   2 * time.Second,
	}
}

// Run blocks until ctx is done and every in-flight job has finished.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range p.concurrency {
		g.Go(func() error {
			p.loop(ctx, i)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) loop(ctx context.Context, worker int) {
	log := slog.With("worker", worker)
	log.Info("worker started")
	defer log.Info("worker stopped")

	for ctx.Err() == nil {
		job, err := p.queue.Reserve(ctx, p.poll)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("reserve job", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.retryWait):
			}
			continue
		}
		if job == nil {
			continue
		}

		// shutdown waits for the current job instead of abandoning it mid-way
		p.handle(context.WithoutCancel(ctx), job, log.With("job_id", job.ID, "attempt", job.AttemptsMade))
	}
}

func (p *Pool) handle(ctx context.Context, job *broker.Job, log *slog.Logger) {
	payload, err := broker.DecodeCapture(job.Data)
	if err != nil {
		log.Error("bad job payload", "error", err)
		if err := p.queue.Fail(ctx, job, err.Error()); err != nil {
			log.Error("fail job", "error", err)
		}
		return
	}

	start := time.Now()
	outcome, err := p.handler.Process(ctx, payload)
	if err != nil {
		log.Error("job failed", "error", err, "elapsed", time.Since(start))
		if err := p.queue.Fail(ctx, job, err.Error()); err != nil {
			log.Error("fail job", "error", err)
		}
		return
	}

	result, _ := json.Marshal(outcome)
	if err := p.queue.Complete(ctx, job, string(result)); err != nil {
		log.Error("complete job", "error", err)
		return
	}
	log.Info("job completed", "elapsed", time.Since(start))
}
