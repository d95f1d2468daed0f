package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
	"gorm.io/gorm"
)

func createRiskSignalsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_risk_signals",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.RiskSignalModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_risk_signals_client_created ON risk_signals (client_id, created_at DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.RiskSignalModel{})
		},
	}
}
