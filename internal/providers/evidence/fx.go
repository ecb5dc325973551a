package evidence

import (
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/agrishield/claims/internal/config"
)

var Module = fx.Module("providers.evidence",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Store {
	return NewClient(Config{
		Endpoint: cfg.Evidence.Endpoint,
		LocalDir: cfg.Evidence.LocalDir,
	}, &http.Client{Timeout: cfg.Evidence.UploadTimeout}, log)
}
