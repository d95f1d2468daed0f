package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
	"gorm.io/gorm"
)

func createDisputesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_disputes",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DisputeModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`ALTER TABLE disputes ADD CONSTRAINT chk_disputes_round CHECK (round >= 1)`,
				`ALTER TABLE disputes ADD CONSTRAINT chk_disputes_resolved_at CHECK ((status IN ('resolved', 'rejected')) = (resolved_at IS NOT NULL))`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_disputes_open_item ON disputes (client_id, bureau, item_type, account_ref) WHERE status NOT IN ('resolved', 'rejected')`,
				`CREATE INDEX IF NOT EXISTS idx_disputes_client_created ON disputes (client_id, created_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_disputes_in_progress ON disputes (client_id, round_started_at) WHERE status = 'in_progress'`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DisputeModel{})
		},
	}
}
