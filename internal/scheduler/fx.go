package scheduler

import (
	"context"

	"go.uber.org/fx"

	"github.com/agrishield/claims/internal/config"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(RunSweeper),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		SweepInterval:     cfg.Verify.SweepInterval,
		RecoveryThreshold: cfg.Verify.RecoveryThreshold,
		BatchSize:         cfg.Verify.SweepBatchSize,
	}.withDefaults()
}

func RunSweeper(lc fx.Lifecycle, sweeper *Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sweeper.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
