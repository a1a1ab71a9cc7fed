package seating

import (
	"strings"
	"time"
	"unicode/utf8"
)

// AssignmentPolicy toggles the optional seating rules.
type AssignmentPolicy struct {
	// UniqueGuestNames rejects a guest whose display name is already seated anywhere,
	// even when the name belongs to a different RSVP.
	UniqueGuestNames bool
}

// DefaultAssignmentPolicy matches the behavior organizers are used to: names are unique.
func DefaultAssignmentPolicy() AssignmentPolicy {
	return AssignmentPolicy{UniqueGuestNames: true}
}

// Submission is a normalized RSVP submission ready to persist.
type Submission struct {
	ContactInfo string
	GuestNames  []string
}

// NormalizeSubmission trims the contact and names, drops blank names and validates the result.
func NormalizeSubmission(contactInfo string, rawNames []string) (Submission, error) {
	if len(rawNames) > MaxGuestsPerRSVP {
		return Submission{}, newValidationError(ReasonTooManyGuests)
	}
	contact := strings.TrimSpace(contactInfo)
	if contact == "" {
		return Submission{}, newValidationError(ReasonContactRequired)
	}
	if utf8.RuneCountInString(contact) > MaxContactInfoLength {
		return Submission{}, newValidationError(ReasonContactTooLong)
	}
	names := make([]string, 0, len(rawNames))
	for _, raw := range rawNames {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if utf8.RuneCountInString(trimmed) > MaxGuestNameLength {
			return Submission{}, newValidationError(ReasonGuestNameTooLong)
		}
		names = append(names, trimmed)
	}
	if len(names) == 0 {
		return Submission{}, newValidationError(ReasonGuestNameRequired)
	}
	return Submission{ContactInfo: contact, GuestNames: names}, nil
}

// TableInput carries the editable table fields.
type TableInput struct {
	Name     string
	Capacity int
}

func normalizeTableInput(input TableInput) (TableInput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return TableInput{}, newValidationError(ReasonTableNameRequired)
	}
	if utf8.RuneCountInString(name) > MaxTableNameLength {
		return TableInput{}, newValidationError(ReasonTableNameTooLong)
	}
	if input.Capacity <= 0 {
		return TableInput{}, newValidationError(ReasonCapacityNotPositive)
	}
	return TableInput{Name: name, Capacity: input.Capacity}, nil
}

// AssignRequest selects a table and a guest occurrence.
type AssignRequest struct {
	TableID TableID
	Guest   OccurrenceKey
}

// assignmentSnapshot is the state an assignment is validated against.
type assignmentSnapshot struct {
	rsvp        *RSVP
	table       *Table
	assignments []GuestAssignment
}

// planAssignment applies the seating rules in order and returns the assignment to insert.
// The first violated rule wins. ID and CreatedAt are left for the caller.
func planAssignment(request AssignRequest, snapshot assignmentSnapshot, policy AssignmentPolicy) (GuestAssignment, error) {
	if request.TableID == "" || request.Guest.IsZero() {
		return GuestAssignment{}, newValidationError(ReasonMissingSelection)
	}
	if snapshot.rsvp == nil {
		return GuestAssignment{}, newValidationError(ReasonGuestNotFound)
	}
	occurrence, ok := snapshot.rsvp.Occurrence(request.Guest.SeatIndex)
	if !ok {
		return GuestAssignment{}, newValidationError(ReasonGuestNotFound)
	}
	if snapshot.table == nil {
		return GuestAssignment{}, &NotFoundError{Entity: EntityTable, ID: request.TableID.String()}
	}

	heldByTable := 0
	for _, existing := range snapshot.assignments {
		if existing.Key() == occurrence.Key {
			return GuestAssignment{}, newValidationError(ReasonGuestAlreadyAssigned)
		}
		if policy.UniqueGuestNames && existing.GuestName == occurrence.DisplayName {
			return GuestAssignment{}, newValidationError(ReasonGuestAlreadyAssigned)
		}
		if existing.TableID == snapshot.table.ID {
			heldByTable++
		}
	}
	if heldByTable+1 > snapshot.table.Capacity {
		return GuestAssignment{}, newValidationError(ReasonTableFull)
	}

	return GuestAssignment{
		TableID:    snapshot.table.ID,
		RSVPID:     occurrence.Key.RSVPID.String(),
		GuestName:  occurrence.DisplayName,
		SeatNumber: occurrence.Key.SeatIndex,
	}, nil
}

// FilterRSVPs keeps RSVPs whose contact info or any guest name contains the query,
// case-insensitively. A blank query keeps everything.
func FilterRSVPs(rsvps []RSVP, query string) []RSVP {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return rsvps
	}
	filtered := make([]RSVP, 0, len(rsvps))
	for _, rsvp := range rsvps {
		if strings.Contains(strings.ToLower(rsvp.ContactInfo), needle) {
			filtered = append(filtered, rsvp)
			continue
		}
		for _, name := range rsvp.GuestNames {
			if strings.Contains(strings.ToLower(name), needle) {
				filtered = append(filtered, rsvp)
				break
			}
		}
	}
	return filtered
}

// FilterAssignmentsByGuest keeps assignments whose guest name contains the query,
// case-insensitively.
func FilterAssignmentsByGuest(assignments []GuestAssignment, query string) []GuestAssignment {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return assignments
	}
	filtered := make([]GuestAssignment, 0, len(assignments))
	for _, assignment := range assignments {
		if strings.Contains(strings.ToLower(assignment.GuestName), needle) {
			filtered = append(filtered, assignment)
		}
	}
	return filtered
}

// BuildSeatingChart assembles the full chart, keeping tables that have no guests yet.
func BuildSeatingChart(rsvps []RSVP, tables []Table, assignments []GuestAssignment, generated time.Time) SeatingChart {
	byTable := make(map[string][]GuestAssignment, len(tables))
	for _, assignment := range assignments {
		byTable[assignment.TableID] = append(byTable[assignment.TableID], assignment)
	}
	chart := SeatingChart{
		Tables:    make([]TableSeating, 0, len(tables)),
		Unseated:  ComputeAvailableGuests(rsvps, assignments),
		Generated: generated,
	}
	for _, table := range tables {
		chart.Tables = append(chart.Tables, TableSeating{Table: table, Assignments: byTable[table.ID]})
	}
	return chart
}
