package seating

import (
	"context"
	"time"
)

// ChangeKind names a committed seating mutation.
type ChangeKind string

const (
	ChangeRSVPSubmitted     ChangeKind = "rsvp.submitted"
	ChangeRSVPDeleted       ChangeKind = "rsvp.deleted"
	ChangeTableCreated      ChangeKind = "table.created"
	ChangeTableUpdated      ChangeKind = "table.updated"
	ChangeTableDeleted      ChangeKind = "table.deleted"
	ChangeGuestAssigned     ChangeKind = "guest.assigned"
	ChangeAssignmentDeleted ChangeKind = "assignment.deleted"
)

// Change describes a mutation after it has been committed.
type Change struct {
	Kind          ChangeKind `json:"kind"`
	RSVPIDs       []string   `json:"rsvp_ids,omitempty"`
	TableIDs      []string   `json:"table_ids,omitempty"`
	AssignmentIDs []string   `json:"assignment_ids,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// ChangeNotifier receives committed changes so that snapshot readers can refresh.
type ChangeNotifier interface {
	NotifyChange(ctx context.Context, change Change) error
}

// ChangeNotifierFunc adapts a function to ChangeNotifier.
type ChangeNotifierFunc func(ctx context.Context, change Change) error

// NotifyChange calls f.
func (f ChangeNotifierFunc) NotifyChange(ctx context.Context, change Change) error {
	return f(ctx, change)
}
