package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
	"gorm.io/gorm"
)

func createAutomationTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_automation_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.AutomationLogModel{}, &repository.AutomationSettingsModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_automation_logs_action_ts ON automation_logs (action, timestamp DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_automation_logs_client ON automation_logs (client_id) WHERE client_id IS NOT NULL`,
				`ALTER TABLE automation_settings ADD CONSTRAINT chk_automation_settings_single_row CHECK (id = 1)`,
				`INSERT INTO automation_settings (id, paused, updated_by, updated_at) VALUES (1, false, 'migration', now()) ON CONFLICT (id) DO NOTHING`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AutomationSettingsModel{}, &repository.AutomationLogModel{})
		},
	}
}
