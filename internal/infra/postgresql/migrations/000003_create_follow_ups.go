package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/dispute-autopilot/internal/repository"
	"gorm.io/gorm"
)

func createFollowUpsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_follow_ups",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.FollowUpModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`ALTER TABLE follow_ups ADD CONSTRAINT fk_follow_ups_dispute FOREIGN KEY (dispute_id) REFERENCES disputes (id)`,
				`ALTER TABLE follow_ups ADD CONSTRAINT chk_follow_ups_sent_date CHECK ((status = 'sent') = (sent_date IS NOT NULL))`,
				`CREATE INDEX IF NOT EXISTS idx_follow_ups_dispute ON follow_ups (dispute_id, round)`,
				`CREATE INDEX IF NOT EXISTS idx_follow_ups_due ON follow_ups (scheduled_date) WHERE status = 'pending' AND dispatched_at IS NULL`,
				`CREATE INDEX IF NOT EXISTS idx_follow_ups_unopened_letters ON follow_ups (sent_date) WHERE channel = 'letter' AND status = 'sent' AND opened_at IS NULL`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.FollowUpModel{})
		},
	}
}
