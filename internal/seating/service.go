package seating

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

var noOpLogger = zap.NewNop()

const (
	opServiceNew          = "seating.service.new"
	opListAvailableGuests = "seating.list_available_guests"
	opAssignGuest         = "seating.assign_guest"
	opDeleteAssignment    = "seating.delete_assignment"
	opListSeatings        = "seating.list_seatings"
	opCreateTable         = "seating.create_table"
	opEditTable           = "seating.edit_table"
	opDeleteTable         = "seating.delete_table"
	opListTables          = "seating.list_tables"
	opSubmitRSVP          = "seating.submit_rsvp"
	opListRSVPs           = "seating.list_rsvps"
	opDeleteRSVP          = "seating.delete_rsvp"
	opSummary             = "seating.summary"
	opSeatingChart        = "seating.seating_chart"

	reasonMissingRepository  = "missing_repository"
	reasonMissingIDProvider  = "missing_id_provider"
	reasonIDGenerationFailed = "id_generation_failed"
	reasonQueryFailed        = "query_failed"
	reasonInsertFailed       = "insert_failed"
	reasonUpdateFailed       = "update_failed"
	reasonDeleteFailed       = "delete_failed"
	reasonCascadeFailed      = "cascade_failed"
	reasonTransactionFailed  = "transaction_failed"

	fieldTableID      = "table_id"
	fieldRSVPID       = "rsvp_id"
	fieldAssignmentID = "assignment_id"
	fieldSeatIndex    = "seat_index"
)

// ServiceConfig describes the dependencies of the seating service.
type ServiceConfig struct {
	Repository Repository
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
	Policy     AssignmentPolicy
	Notifiers  []ChangeNotifier
}

// IDProvider issues identifiers for new records.
type IDProvider interface {
	NewID() (string, error)
}

// Service is the guest-to-table assignment engine.
type Service struct {
	repository Repository
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
	policy     AssignmentPolicy
	notifiers  []ChangeNotifier
}

// NewService validates the configuration and constructs the engine.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, newStoreError(opServiceNew, reasonMissingRepository, errMissingRepository)
	}
	if cfg.IDProvider == nil {
		return nil, newStoreError(opServiceNew, reasonMissingIDProvider, errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	notifiers := make([]ChangeNotifier, 0, len(cfg.Notifiers))
	for _, notifier := range cfg.Notifiers {
		if notifier != nil {
			notifiers = append(notifiers, notifier)
		}
	}
	return &Service{
		repository: cfg.Repository,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		policy:     cfg.Policy,
		notifiers:  notifiers,
	}, nil
}

// Policy returns the assignment policy in force.
func (s *Service) Policy() AssignmentPolicy {
	return s.policy
}

// ListAvailableGuests returns the guest occurrences that are not seated yet.
func (s *Service) ListAvailableGuests(ctx context.Context) ([]GuestOccurrence, error) {
	if err := s.ready(opListAvailableGuests); err != nil {
		return nil, err
	}
	rsvps, err := s.repository.RSVPs().ListRSVPs(ctx)
	if err != nil {
		return nil, s.storeFailure(opListAvailableGuests, reasonQueryFailed, err)
	}
	assignments, err := s.repository.Assignments().ListAssignments(ctx)
	if err != nil {
		return nil, s.storeFailure(opListAvailableGuests, reasonQueryFailed, err)
	}
	return ComputeAvailableGuests(rsvps, assignments), nil
}

// AssignGuest seats one guest occurrence at a table. Checks and insert share one transaction.
func (s *Service) AssignGuest(ctx context.Context, request AssignRequest) (GuestAssignment, error) {
	if err := s.ready(opAssignGuest); err != nil {
		return GuestAssignment{}, err
	}
	if request.TableID == "" || request.Guest.IsZero() {
		return GuestAssignment{}, newValidationError(ReasonMissingSelection)
	}
	fields := []zap.Field{
		zap.String(fieldTableID, request.TableID.String()),
		zap.String(fieldRSVPID, request.Guest.RSVPID.String()),
		zap.Int(fieldSeatIndex, request.Guest.SeatIndex),
	}

	var created GuestAssignment
	txErr := s.repository.WithinTransaction(ctx, func(stores Stores) error {
		snapshot := assignmentSnapshot{}

		rsvp, err := stores.RSVPs().GetRSVP(ctx, request.Guest.RSVPID)
		switch {
		case err == nil:
			snapshot.rsvp = &rsvp
		case !errors.Is(err, ErrRecordMissing):
			return s.storeFailure(opAssignGuest, reasonQueryFailed, err, fields...)
		}

		table, err := stores.Tables().GetTable(ctx, request.TableID)
		switch {
		case err == nil:
			snapshot.table = &table
		case !errors.Is(err, ErrRecordMissing):
			return s.storeFailure(opAssignGuest, reasonQueryFailed, err, fields...)
		}

		snapshot.assignments, err = stores.Assignments().ListAssignments(ctx)
		if err != nil {
			return s.storeFailure(opAssignGuest, reasonQueryFailed, err, fields...)
		}

		planned, err := planAssignment(request, snapshot, s.policy)
		if err != nil {
			return err
		}

		planned.ID, err = s.idProvider.NewID()
		if err != nil {
			return s.storeFailure(opAssignGuest, reasonIDGenerationFailed, err, fields...)
		}
		planned.CreatedAt = s.clock().UTC()

		if err := stores.Assignments().CreateAssignment(ctx, &planned); err != nil {
			if errors.Is(err, ErrDuplicateOccurrence) {
				return newValidationError(ReasonGuestAlreadyAssigned)
			}
			return s.storeFailure(opAssignGuest, reasonInsertFailed, err, fields...)
		}
		created = planned
		return nil
	})
	if txErr != nil {
		return GuestAssignment{}, s.transactionFailure(opAssignGuest, txErr)
	}

	s.notify(ctx, Change{
		Kind:          ChangeGuestAssigned,
		RSVPIDs:       []string{created.RSVPID},
		TableIDs:      []string{created.TableID},
		AssignmentIDs: []string{created.ID},
	})
	return created, nil
}

// DeleteAssignment removes one assignment, freeing its guest occurrence.
func (s *Service) DeleteAssignment(ctx context.Context, id AssignmentID) error {
	if err := s.ready(opDeleteAssignment); err != nil {
		return err
	}
	if err := s.repository.Assignments().DeleteAssignment(ctx, id); err != nil {
		if errors.Is(err, ErrRecordMissing) {
			return &NotFoundError{Entity: EntityAssignment, ID: id.String()}
		}
		return s.storeFailure(opDeleteAssignment, reasonDeleteFailed, err, zap.String(fieldAssignmentID, id.String()))
	}
	s.notify(ctx, Change{Kind: ChangeAssignmentDeleted, AssignmentIDs: []string{id.String()}})
	return nil
}

// ListSeatings returns assignments grouped per table, filtered by guest name.
func (s *Service) ListSeatings(ctx context.Context, query string) ([]TableSeating, error) {
	if err := s.ready(opListSeatings); err != nil {
		return nil, err
	}
	tables, err := s.repository.Tables().ListTables(ctx)
	if err != nil {
		return nil, s.storeFailure(opListSeatings, reasonQueryFailed, err)
	}
	assignments, err := s.repository.Assignments().ListAssignments(ctx)
	if err != nil {
		return nil, s.storeFailure(opListSeatings, reasonQueryFailed, err)
	}
	return GroupSeatings(tables, FilterAssignmentsByGuest(assignments, query)), nil
}

// CreateTable validates and stores a new table.
func (s *Service) CreateTable(ctx context.Context, input TableInput) (Table, error) {
	if err := s.ready(opCreateTable); err != nil {
		return Table{}, err
	}
	normalized, err := normalizeTableInput(input)
	if err != nil {
		return Table{}, err
	}
	tableID, err := s.idProvider.NewID()
	if err != nil {
		return Table{}, s.storeFailure(opCreateTable, reasonIDGenerationFailed, err)
	}
	table := Table{
		ID:        tableID,
		Name:      normalized.Name,
		Capacity:  normalized.Capacity,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.repository.Tables().CreateTable(ctx, &table); err != nil {
		return Table{}, s.storeFailure(opCreateTable, reasonInsertFailed, err, zap.String(fieldTableID, table.ID))
	}
	s.notify(ctx, Change{Kind: ChangeTableCreated, TableIDs: []string{table.ID}})
	return table, nil
}

// EditTable replaces a table's name and capacity. Capacity may not drop below the number
// of guests already seated at the table.
func (s *Service) EditTable(ctx context.Context, id TableID, input TableInput) (Table, error) {
	if err := s.ready(opEditTable); err != nil {
		return Table{}, err
	}
	normalized, err := normalizeTableInput(input)
	if err != nil {
		return Table{}, err
	}
	field := zap.String(fieldTableID, id.String())

	var updated Table
	txErr := s.repository.WithinTransaction(ctx, func(stores Stores) error {
		table, err := stores.Tables().GetTable(ctx, id)
		if err != nil {
			if errors.Is(err, ErrRecordMissing) {
				return &NotFoundError{Entity: EntityTable, ID: id.String()}
			}
			return s.storeFailure(opEditTable, reasonQueryFailed, err, field)
		}
		seated, err := stores.Assignments().CountAssignmentsForTable(ctx, id)
		if err != nil {
			return s.storeFailure(opEditTable, reasonQueryFailed, err, field)
		}
		if normalized.Capacity < seated {
			return newValidationError(ReasonCapacityBelowAssigned)
		}
		table.Name = normalized.Name
		table.Capacity = normalized.Capacity
		if err := stores.Tables().UpdateTable(ctx, &table); err != nil {
			return s.storeFailure(opEditTable, reasonUpdateFailed, err, field)
		}
		updated = table
		return nil
	})
	if txErr != nil {
		return Table{}, s.transactionFailure(opEditTable, txErr)
	}
	s.notify(ctx, Change{Kind: ChangeTableUpdated, TableIDs: []string{updated.ID}})
	return updated, nil
}

// DeleteTable removes a table together with its assignments and reports how many
// assignments were removed.
func (s *Service) DeleteTable(ctx context.Context, id TableID) (int, error) {
	if err := s.ready(opDeleteTable); err != nil {
		return 0, err
	}
	field := zap.String(fieldTableID, id.String())

	removed := 0
	txErr := s.repository.WithinTransaction(ctx, func(stores Stores) error {
		if _, err := stores.Tables().GetTable(ctx, id); err != nil {
			if errors.Is(err, ErrRecordMissing) {
				return &NotFoundError{Entity: EntityTable, ID: id.String()}
			}
			return s.storeFailure(opDeleteTable, reasonQueryFailed, err, field)
		}
		count, err := stores.Assignments().DeleteAssignmentsForTable(ctx, id)
		if err != nil {
			return s.storeFailure(opDeleteTable, reasonCascadeFailed, err, field)
		}
		if err := stores.Tables().DeleteTable(ctx, id); err != nil {
			return s.storeFailure(opDeleteTable, reasonDeleteFailed, err, field)
		}
		removed = count
		return nil
	})
	if txErr != nil {
		return 0, s.transactionFailure(opDeleteTable, txErr)
	}
	if removed > 0 {
		s.logger.Info("table assignments removed with table", field, zap.Int("assignments", removed))
	}
	s.notify(ctx, Change{Kind: ChangeTableDeleted, TableIDs: []string{id.String()}})
	return removed, nil
}

// ListTables returns all tables in creation order.
func (s *Service) ListTables(ctx context.Context) ([]Table, error) {
	if err := s.ready(opListTables); err != nil {
		return nil, err
	}
	tables, err := s.repository.Tables().ListTables(ctx)
	if err != nil {
		return nil, s.storeFailure(opListTables, reasonQueryFailed, err)
	}
	return tables, nil
}

// SubmitRSVP normalizes and stores a guest's attendance confirmation.
func (s *Service) SubmitRSVP(ctx context.Context, contactInfo string, guestNames []string) (RSVP, error) {
	if err := s.ready(opSubmitRSVP); err != nil {
		return RSVP{}, err
	}
	submission, err := NormalizeSubmission(contactInfo, guestNames)
	if err != nil {
		return RSVP{}, err
	}
	rsvpID, err := s.idProvider.NewID()
	if err != nil {
		return RSVP{}, s.storeFailure(opSubmitRSVP, reasonIDGenerationFailed, err)
	}
	now := s.clock().UTC()
	rsvp := RSVP{
		ID:          rsvpID,
		ContactInfo: submission.ContactInfo,
		GuestCount:  len(submission.GuestNames),
		GuestNames:  GuestNames(submission.GuestNames),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repository.RSVPs().CreateRSVP(ctx, &rsvp); err != nil {
		return RSVP{}, s.storeFailure(opSubmitRSVP, reasonInsertFailed, err, zap.String(fieldRSVPID, rsvp.ID))
	}
	s.notify(ctx, Change{Kind: ChangeRSVPSubmitted, RSVPIDs: []string{rsvp.ID}})
	return rsvp, nil
}

// ListRSVPs returns RSVPs newest first, filtered by contact or guest name.
func (s *Service) ListRSVPs(ctx context.Context, query string) ([]RSVP, error) {
	if err := s.ready(opListRSVPs); err != nil {
		return nil, err
	}
	rsvps, err := s.repository.RSVPs().ListRSVPs(ctx)
	if err != nil {
		return nil, s.storeFailure(opListRSVPs, reasonQueryFailed, err)
	}
	newestFirst := make([]RSVP, 0, len(rsvps))
	for index := len(rsvps) - 1; index >= 0; index-- {
		newestFirst = append(newestFirst, rsvps[index])
	}
	return FilterRSVPs(newestFirst, query), nil
}

// DeleteRSVP removes an RSVP together with the assignments of its guests.
func (s *Service) DeleteRSVP(ctx context.Context, id RSVPID) error {
	if err := s.ready(opDeleteRSVP); err != nil {
		return err
	}
	field := zap.String(fieldRSVPID, id.String())

	removed := 0
	txErr := s.repository.WithinTransaction(ctx, func(stores Stores) error {
		count, err := stores.Assignments().DeleteAssignmentsForRSVP(ctx, id)
		if err != nil {
			return s.storeFailure(opDeleteRSVP, reasonCascadeFailed, err, field)
		}
		if err := stores.RSVPs().DeleteRSVP(ctx, id); err != nil {
			if errors.Is(err, ErrRecordMissing) {
				return &NotFoundError{Entity: EntityRSVP, ID: id.String()}
			}
			return s.storeFailure(opDeleteRSVP, reasonDeleteFailed, err, field)
		}
		removed = count
		return nil
	})
	if txErr != nil {
		return s.transactionFailure(opDeleteRSVP, txErr)
	}
	if removed > 0 {
		s.logger.Info("rsvp assignments removed with rsvp", field, zap.Int("assignments", removed))
	}
	s.notify(ctx, Change{Kind: ChangeRSVPDeleted, RSVPIDs: []string{id.String()}})
	return nil
}

// Summary returns dashboard counts computed from fresh snapshots.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	rsvps, tables, assignments, err := s.snapshots(ctx, opSummary)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(rsvps, tables, assignments), nil
}

// SeatingChart returns every table with its guests plus the guests still unseated.
func (s *Service) SeatingChart(ctx context.Context) (SeatingChart, error) {
	rsvps, tables, assignments, err := s.snapshots(ctx, opSeatingChart)
	if err != nil {
		return SeatingChart{}, err
	}
	return BuildSeatingChart(rsvps, tables, assignments, s.clock().UTC()), nil
}

func (s *Service) snapshots(ctx context.Context, operation string) ([]RSVP, []Table, []GuestAssignment, error) {
	if err := s.ready(operation); err != nil {
		return nil, nil, nil, err
	}
	rsvps, err := s.repository.RSVPs().ListRSVPs(ctx)
	if err != nil {
		return nil, nil, nil, s.storeFailure(operation, reasonQueryFailed, err)
	}
	tables, err := s.repository.Tables().ListTables(ctx)
	if err != nil {
		return nil, nil, nil, s.storeFailure(operation, reasonQueryFailed, err)
	}
	assignments, err := s.repository.Assignments().ListAssignments(ctx)
	if err != nil {
		return nil, nil, nil, s.storeFailure(operation, reasonQueryFailed, err)
	}
	return rsvps, tables, assignments, nil
}

func (s *Service) ready(operation string) error {
	if s == nil || s.repository == nil {
		s.logError(operation, reasonMissingRepository, errMissingRepository)
		return newStoreError(operation, reasonMissingRepository, errMissingRepository)
	}
	if s.idProvider == nil {
		s.logError(operation, reasonMissingIDProvider, errMissingIDProvider)
		return newStoreError(operation, reasonMissingIDProvider, errMissingIDProvider)
	}
	return nil
}

func (s *Service) storeFailure(operation, reason string, err error, fields ...zap.Field) error {
	s.logError(operation, reason, err, fields...)
	return newStoreError(operation, reason, err)
}

// transactionFailure passes domain errors through and wraps anything the transaction
// machinery itself produced (begin/commit failures).
func (s *Service) transactionFailure(operation string, err error) error {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	if _, ok := IsValidation(err); ok {
		return err
	}
	if _, ok := IsNotFound(err); ok {
		return err
	}
	return s.storeFailure(operation, reasonTransactionFailed, err)
}

func (s *Service) notify(ctx context.Context, change Change) {
	change.OccurredAt = s.clock().UTC()
	for _, notifier := range s.notifiers {
		if err := notifier.NotifyChange(ctx, change); err != nil {
			s.loggerOrDefault().Warn("seating change notification failed",
				zap.String("kind", string(change.Kind)),
				zap.Error(err))
		}
	}
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("seating service error", attrs...)
}
