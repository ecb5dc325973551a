package cloudmetrics

import (
	"context"
	"net/url"
	"runtime"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agrishield/claims/internal/config"
)

var Module = fx.Module("cloud.metrics",
	fx.Provide(NewPusher),
	fx.Provide(NewRecorderFromConfig),
	fx.Invoke(runPushLoop),
)

// NewPusher builds a pusher from config. Misconfiguration is logged and
// returns nil rather than blocking startup.
func NewPusher(cfg config.Config, logger *zap.Logger) Pusher {
	if !cfg.CloudMetrics.Enabled {
		return nil
	}
	endpoint := strings.TrimSpace(cfg.CloudMetrics.Endpoint)
	if endpoint == "" {
		logger.Warn("cloud metrics disabled: endpoint is required")
		return nil
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		logger.Warn("cloud metrics disabled: invalid endpoint", zap.Error(err))
		return nil
	}
	return NewRemoteWritePusher(endpoint, cfg.CloudMetrics.AuthToken)
}

func NewRecorderFromConfig(cfg config.Config) *Recorder {
	if !cfg.CloudMetrics.Enabled {
		return nil
	}
	nodeID := strings.TrimSpace(cfg.CloudMetrics.NodeID)
	if nodeID == "" {
		nodeID = cfg.AppName
	}
	return NewRecorder(nodeID, cfg.AppVersion)
}

func runPushLoop(lc fx.Lifecycle, cfg config.Config, pusher Pusher, recorder *Recorder, logger *zap.Logger, db *gorm.DB) {
	if pusher == nil || recorder == nil {
		return
	}

	interval := cfg.CloudMetrics.PushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	log := logger.Named("cloudmetrics")

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting cloud metrics push loop", zap.Duration("interval", interval))
			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				push := func() {
					var m runtime.MemStats
					runtime.ReadMemStats(&m)
					recorder.SetMemoryUsage(m.Sys)
					if err := recorder.RefreshClaimCounts(ctx, db); err != nil {
						log.Warn("refreshing claim counts failed", zap.Error(err))
					}
					if err := pusher.Push(ctx, recorder.Registry()); err != nil {
						log.Warn("cloud metrics push failed", zap.Error(err))
					}
				}

				push()
				for {
					select {
					case <-ticker.C:
						push()
					case <-ctx.Done():
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
