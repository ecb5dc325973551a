package verifier

import (
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/agrishield/claims/internal/config"
)

var Module = fx.Module("providers.verifier",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, crops *config.CropConfigHolder, log *zap.Logger) Verifier {
	return NewClient(Config{
		Endpoint:      cfg.Verifier.Endpoint,
		MaxAttempts:   cfg.Verifier.MaxAttempts,
		HealthTimeout: cfg.Verifier.HealthTimeout,
	}, &http.Client{Timeout: cfg.Verifier.CallTimeout}, func() config.CropConfig {
		return crops.Current()
	}, log)
}
