package verify

import (
	"context"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/agrishield/claims/internal/claim/domain"
	"github.com/agrishield/claims/internal/config"
	obsmetrics "github.com/agrishield/claims/internal/observability/metrics"
)

type PoolParams struct {
	fx.In

	LC      fx.Lifecycle
	Cfg     config.Config
	Log     *zap.Logger
	Queue   *Queue
	Service domain.Service
}

// Pool runs a fixed set of workers draining the verification queue. A
// worker failure on one claim never affects other claims; the failed claim
// stays unevaluated and the recovery sweep re-enqueues it.
type Pool struct {
	workers int
	log     *zap.Logger
	queue   *Queue
	svc     domain.Service

	quit chan struct{}
	wg   sync.WaitGroup
}

func NewPool(p PoolParams) *Pool {
	workers := p.Cfg.Verify.Workers
	if workers <= 0 {
		workers = 4
	}
	pool := &Pool{
		workers: workers,
		log:     p.Log.Named("verify.pool"),
		queue:   p.Queue,
		svc:     p.Service,
	}

	p.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			pool.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			pool.Stop(ctx)
			return nil
		},
	})

	return pool
}

func (p *Pool) Start() {
	p.quit = make(chan struct{})

	p.log.Info("starting verification workers", zap.Int("workers", p.workers))
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

// Stop halts intake and waits for in-flight jobs to finish or the shutdown
// context to expire. A started job always runs to completion; jobs still
// queued are abandoned and their persisted pending markers make the next
// process's sweep pick them up.
func (p *Pool) Stop(ctx context.Context) {
	if p.quit == nil {
		return
	}
	close(p.quit)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		p.log.Warn("shutdown deadline reached before verification workers drained")
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case id := <-p.queue.jobs():
			obsmetrics.Pipeline().SetVerifyQueueDepth(p.queue.Depth())
			// Not tied to the shutdown signal: a picked-up job finishes even
			// while the pool drains.
			if err := p.svc.ProcessVerification(context.Background(), id); err != nil {
				p.log.Error("verification job failed",
					zap.String("claim_id", id.String()),
					zap.Error(err),
				)
			}
		}
	}
}

var Module = fx.Module("claim.verify",
	fx.Provide(NewQueueFromConfig),
	fx.Provide(NewPool),
	fx.Invoke(func(*Pool) {}),
)

func NewQueueFromConfig(cfg config.Config, log *zap.Logger) *Queue {
	return NewQueue(cfg.Verify.QueueSize, log)
}
