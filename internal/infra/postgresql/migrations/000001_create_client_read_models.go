package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
	"gorm.io/gorm"
)

// Client tables are owned by the wider application. They are declared here so a
// standalone deployment can run the sweeps against an empty schema.
func createClientReadModels() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_client_read_models",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(
				&repository.ClientModel{},
				&repository.SupportMessageModel{},
				&repository.DocumentRequestModel{},
			); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_support_messages_client_created ON support_messages (client_id, created_at) WHERE direction = 'inbound'`,
				`CREATE INDEX IF NOT EXISTS idx_document_requests_open ON document_requests (requested_at) WHERE fulfilled_at IS NULL`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&repository.DocumentRequestModel{},
				&repository.SupportMessageModel{},
				&repository.ClientModel{},
			)
		},
	}
}
