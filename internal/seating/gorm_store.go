package seating

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	queryID            = "id = ?"
	queryTableID       = "table_id = ?"
	queryRSVPID        = "rsvp_id = ?"
	orderCreatedAsc    = "created_at ASC, id ASC"
	duplicateSQLite    = "unique constraint failed"
	duplicatePostgres  = "duplicate key value"
	duplicateSQLSTATE  = "23505"
	errFormatMissingID = "%w: %s %s"
)

// GormRepository implements Repository on top of a gorm connection.
type GormRepository struct {
	stores gormStores
}

// NewGormRepository wraps the provided database handle.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{stores: gormStores{db: db}}
}

// RSVPs returns the RSVP store outside any transaction.
func (r *GormRepository) RSVPs() RSVPStore {
	return r.stores
}

// Tables returns the table store outside any transaction.
func (r *GormRepository) Tables() TableStore {
	return r.stores
}

// Assignments returns the assignment store outside any transaction.
func (r *GormRepository) Assignments() AssignmentStore {
	return r.stores
}

// WithinTransaction runs fn against stores bound to a single transaction. Row reads made
// through the transactional table store take an update lock where the dialect supports it.
func (r *GormRepository) WithinTransaction(ctx context.Context, fn func(stores Stores) error) error {
	return r.stores.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(gormStores{db: transaction, locking: true})
	})
}

type gormStores struct {
	db      *gorm.DB
	locking bool
}

func (s gormStores) RSVPs() RSVPStore {
	return s
}

func (s gormStores) Tables() TableStore {
	return s
}

func (s gormStores) Assignments() AssignmentStore {
	return s
}

func (s gormStores) ListRSVPs(ctx context.Context) ([]RSVP, error) {
	var rsvps []RSVP
	if err := s.db.WithContext(ctx).Order(orderCreatedAsc).Find(&rsvps).Error; err != nil {
		return nil, err
	}
	return rsvps, nil
}

func (s gormStores) GetRSVP(ctx context.Context, id RSVPID) (RSVP, error) {
	var rsvp RSVP
	err := s.db.WithContext(ctx).Where(queryID, id.String()).Take(&rsvp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RSVP{}, fmt.Errorf(errFormatMissingID, ErrRecordMissing, EntityRSVP, id)
	}
	return rsvp, err
}

func (s gormStores) CreateRSVP(ctx context.Context, rsvp *RSVP) error {
	return s.db.WithContext(ctx).Create(rsvp).Error
}

func (s gormStores) DeleteRSVP(ctx context.Context, id RSVPID) error {
	result := s.db.WithContext(ctx).Where(queryID, id.String()).Delete(&RSVP{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf(errFormatMissingID, ErrRecordMissing, EntityRSVP, id)
	}
	return nil
}

func (s gormStores) ListTables(ctx context.Context) ([]Table, error) {
	var tables []Table
	if err := s.db.WithContext(ctx).Order(orderCreatedAsc).Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}

func (s gormStores) GetTable(ctx context.Context, id TableID) (Table, error) {
	query := s.db.WithContext(ctx)
	if s.locking {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var table Table
	err := query.Where(queryID, id.String()).Take(&table).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Table{}, fmt.Errorf(errFormatMissingID, ErrRecordMissing, EntityTable, id)
	}
	return table, err
}

func (s gormStores) CreateTable(ctx context.Context, table *Table) error {
	return s.db.WithContext(ctx).Create(table).Error
}

func (s gormStores) UpdateTable(ctx context.Context, table *Table) error {
	result := s.db.WithContext(ctx).Model(&Table{}).
		Where(queryID, table.ID).
		Updates(map[string]any{"name": table.Name, "capacity": table.Capacity})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf(errFormatMissingID, ErrRecordMissing, EntityTable, table.ID)
	}
	return nil
}

func (s gormStores) DeleteTable(ctx context.Context, id TableID) error {
	result := s.db.WithContext(ctx).Where(queryID, id.String()).Delete(&Table{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf(errFormatMissingID, ErrRecordMissing, EntityTable, id)
	}
	return nil
}

func (s gormStores) ListAssignments(ctx context.Context) ([]GuestAssignment, error) {
	var assignments []GuestAssignment
	if err := s.db.WithContext(ctx).Order(orderCreatedAsc).Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (s gormStores) CountAssignmentsForTable(ctx context.Context, id TableID) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&GuestAssignment{}).Where(queryTableID, id.String()).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s gormStores) CreateAssignment(ctx context.Context, assignment *GuestAssignment) error {
	err := s.db.WithContext(ctx).Create(assignment).Error
	if err != nil && isDuplicateKey(err) {
		return fmt.Errorf("%w: %v", ErrDuplicateOccurrence, err)
	}
	return err
}

func (s gormStores) DeleteAssignment(ctx context.Context, id AssignmentID) error {
	result := s.db.WithContext(ctx).Where(queryID, id.String()).Delete(&GuestAssignment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf(errFormatMissingID, ErrRecordMissing, EntityAssignment, id)
	}
	return nil
}

func (s gormStores) DeleteAssignmentsForTable(ctx context.Context, id TableID) (int, error) {
	result := s.db.WithContext(ctx).Where(queryTableID, id.String()).Delete(&GuestAssignment{})
	return int(result.RowsAffected), result.Error
}

func (s gormStores) DeleteAssignmentsForRSVP(ctx context.Context, id RSVPID) (int, error) {
	result := s.db.WithContext(ctx).Where(queryRSVPID, id.String()).Delete(&GuestAssignment{})
	return int(result.RowsAffected), result.Error
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, duplicateSQLite) ||
		strings.Contains(message, duplicatePostgres) ||
		strings.Contains(message, duplicateSQLSTATE)
}
