package migration

import (
	claimdomain "github.com/agrishield/claims/internal/claim/domain"
	"github.com/agrishield/claims/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Versioned migrations are written for postgres; other dialects
			// (dev sqlite, mysql) rely on gorm schema sync.
			return conn.AutoMigrate(
				&claimdomain.Claim{},
				&claimdomain.Evidence{},
				&claimdomain.VerificationResult{},
				&claimdomain.PayoutTransaction{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
