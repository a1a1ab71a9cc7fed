package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/seating/internal/seating"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationRemoveOrphanedAssignments = "2026-05-10_remove_orphaned_assignments"
	migrationSyncGuestCounts           = "2026-05-10_sync_guest_counts"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) (int64, error)
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationRemoveOrphanedAssignments, apply: removeOrphanedAssignments},
		{name: migrationSyncGuestCounts, apply: syncGuestCounts},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			affected, err := migration.apply(tx)
			if err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			if err := tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
				return err
			}
			if logger != nil {
				logger.Info("database migration applied",
					zap.String("migration", migration.name),
					zap.Int64("rows", affected))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// removeOrphanedAssignments drops assignments whose table or RSVP no longer exists.
// Deletes that predate the cascading service operations could leave them behind.
func removeOrphanedAssignments(db *gorm.DB) (int64, error) {
	result := db.
		Where("table_id NOT IN (?) OR rsvp_id NOT IN (?)",
			db.Model(&seating.Table{}).Select("id"),
			db.Model(&seating.RSVP{}).Select("id")).
		Delete(&seating.GuestAssignment{})
	return result.RowsAffected, result.Error
}

// syncGuestCounts rewrites guest_count where it disagrees with the stored names.
func syncGuestCounts(db *gorm.DB) (int64, error) {
	var rsvps []seating.RSVP
	if err := db.Find(&rsvps).Error; err != nil {
		return 0, err
	}
	var fixed int64
	for _, rsvp := range rsvps {
		if rsvp.GuestCount == len(rsvp.GuestNames) {
			continue
		}
		err := db.Model(&seating.RSVP{}).
			Where("id = ?", rsvp.ID).
			Update("guest_count", len(rsvp.GuestNames)).
			Error
		if err != nil {
			return fixed, err
		}
		fixed++
	}
	return fixed, nil
}
