package migration

import (
	"github.com/smallbiznis/votechain/internal/config"
	settlementdomain "github.com/smallbiznis/votechain/internal/settlement/domain"
	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
	voteintentdomain "github.com/smallbiznis/votechain/internal/voteintent/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The SQL migrations are postgres-only; sqlite deployments (and
		// tests) build the schema from the models directly.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&voteintentdomain.VoteIntent{},
				&tenantdomain.TenantSettings{},
				&settlementdomain.BatchResult{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
