package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agrishield/claims/internal/claim/domain"
	"github.com/agrishield/claims/internal/claim/verify"
	"github.com/agrishield/claims/internal/clock"
	obsmetrics "github.com/agrishield/claims/internal/observability/metrics"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Config struct {
	SweepInterval     time.Duration
	RecoveryThreshold time.Duration
	BatchSize         int
}

func (c Config) withDefaults() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.RecoveryThreshold <= 0 {
		c.RecoveryThreshold = 5 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	return c
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
	Queue *verify.Queue
	Cfg   Config `optional:"true"`
}

// Sweeper re-enqueues claims whose verification job was lost, whether to a
// crash between intake and verdict or a dropped enqueue on a full queue. The
// persisted pending marker (verify_requested_at) is the source of truth for
// what is recoverable.
type Sweeper struct {
	db    *gorm.DB
	log   *zap.Logger
	cfg   Config
	clock clock.Clock
	repo  domain.Repository
	queue *verify.Queue
}

func New(p Params) (*Sweeper, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Repo == nil || p.Queue == nil {
		return nil, ErrInvalidConfig
	}
	return &Sweeper{
		db:    p.DB,
		log:   p.Log.Named("scheduler.sweeper"),
		cfg:   p.Cfg.withDefaults(),
		clock: p.Clock,
		repo:  p.Repo,
		queue: p.Queue,
	}, nil
}

func (s *Sweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("recovery sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce re-enqueues one batch of stuck claims. The pending marker is
// refreshed before enqueueing so the next sweep does not pick the same claim
// up again while it waits in the queue.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	cutoff := s.clock.Now().UTC().Add(-s.cfg.RecoveryThreshold)

	stuck, err := s.repo.FindStuckPending(ctx, s.db, cutoff, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		return nil
	}

	now := s.clock.Now().UTC()
	recovered := 0
	for _, claim := range stuck {
		if err := s.repo.UpdateFields(ctx, s.db, claim.ID, map[string]any{
			"verify_requested_at": now,
		}); err != nil {
			s.log.Warn("refreshing pending marker failed",
				zap.String("claim_id", claim.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if !s.queue.Enqueue(claim.ID) {
			// Queue is full again; the refreshed marker keeps the claim
			// eligible for the next sweep.
			break
		}
		obsmetrics.Pipeline().IncSweepRecovered()
		recovered++
	}

	if recovered > 0 {
		s.log.Info("recovered stuck verification jobs",
			zap.Int("recovered", recovered),
			zap.Int("candidates", len(stuck)),
		)
	}
	return nil
}
