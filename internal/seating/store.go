package seating

import "context"

// RSVPStore persists RSVPs. Lists are ordered by creation time, oldest first.
type RSVPStore interface {
	ListRSVPs(ctx context.Context) ([]RSVP, error)
	GetRSVP(ctx context.Context, id RSVPID) (RSVP, error)
	CreateRSVP(ctx context.Context, rsvp *RSVP) error
	DeleteRSVP(ctx context.Context, id RSVPID) error
}

// TableStore persists seating tables. Lists are ordered by creation time.
type TableStore interface {
	ListTables(ctx context.Context) ([]Table, error)
	GetTable(ctx context.Context, id TableID) (Table, error)
	CreateTable(ctx context.Context, table *Table) error
	UpdateTable(ctx context.Context, table *Table) error
	DeleteTable(ctx context.Context, id TableID) error
}

// AssignmentStore persists guest assignments.
type AssignmentStore interface {
	ListAssignments(ctx context.Context) ([]GuestAssignment, error)
	CountAssignmentsForTable(ctx context.Context, id TableID) (int, error)
	CreateAssignment(ctx context.Context, assignment *GuestAssignment) error
	DeleteAssignment(ctx context.Context, id AssignmentID) error
	DeleteAssignmentsForTable(ctx context.Context, id TableID) (int, error)
	DeleteAssignmentsForRSVP(ctx context.Context, id RSVPID) (int, error)
}

// Stores bundles the three stores so they can share one transaction.
type Stores interface {
	RSVPs() RSVPStore
	Tables() TableStore
	Assignments() AssignmentStore
}

// Repository exposes the stores and runs multi-step mutations atomically.
// Get and Delete calls report a missing record with an error matching ErrRecordMissing;
// CreateAssignment reports a duplicate occurrence with one matching ErrDuplicateOccurrence.
type Repository interface {
	Stores
	WithinTransaction(ctx context.Context, fn func(stores Stores) error) error
}
