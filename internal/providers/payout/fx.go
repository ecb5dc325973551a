package payout

import (
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/agrishield/claims/internal/config"
)

var Module = fx.Module("providers.payout",
	fx.Provide(NewFromConfig),
)

// NewFromConfig selects the gateway strategy from configuration. Callers
// only ever see the Gateway contract.
func NewFromConfig(cfg config.Config, log *zap.Logger) Gateway {
	if cfg.Payout.Mode == config.PayoutModeGateway && cfg.Payout.Endpoint != "" {
		return NewHTTP(Config{
			Endpoint: cfg.Payout.Endpoint,
		}, &http.Client{Timeout: cfg.Payout.CallTimeout}, log)
	}
	return NewSimulated(log)
}
