package ledger

import (
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/agrishield/claims/internal/config"
)

var Module = fx.Module("providers.ledger",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Ledger {
	return NewClient(Config{
		Endpoint: cfg.Ledger.Endpoint,
	}, &http.Client{Timeout: cfg.Ledger.CallTimeout}, log)
}
