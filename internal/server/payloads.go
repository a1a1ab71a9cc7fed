package server

import (
	"time"

	"github.com/MarcoPoloResearchLab/seating/internal/seating"
)

type submitRSVPRequestPayload struct {
	ContactInfo string   `json:"contact_info"`
	GuestNames  []string `json:"guest_names"`
}

type tableRequestPayload struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// assignRequestPayload keeps seat_index optional so an omitted seat is not read as seat 0.
type assignRequestPayload struct {
	TableID   string `json:"table_id"`
	RSVPID    string `json:"rsvp_id"`
	SeatIndex *int   `json:"seat_index"`
}

type rsvpPayload struct {
	ID          string    `json:"id"`
	ContactInfo string    `json:"contact_info"`
	GuestCount  int       `json:"guest_count"`
	GuestNames  []string  `json:"guest_names"`
	CreatedAt   time.Time `json:"created_at"`
}

type tablePayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
}

type assignmentPayload struct {
	ID        string    `json:"id"`
	TableID   string    `json:"table_id"`
	RSVPID    string    `json:"rsvp_id"`
	GuestName string    `json:"guest_name"`
	SeatIndex int       `json:"seat_index"`
	CreatedAt time.Time `json:"created_at"`
}

type availableGuestPayload struct {
	RSVPID      string `json:"rsvp_id"`
	SeatIndex   int    `json:"seat_index"`
	GuestName   string `json:"guest_name"`
	ContactInfo string `json:"contact_info"`
}

type tableSeatingPayload struct {
	Table       tablePayload        `json:"table"`
	Assignments []assignmentPayload `json:"assignments"`
}

type summaryPayload struct {
	RSVPCount      int `json:"rsvp_count"`
	GuestCount     int `json:"guest_count"`
	SeatedCount    int `json:"seated_count"`
	AvailableCount int `json:"available_count"`
	TableCount     int `json:"table_count"`
	TotalCapacity  int `json:"total_capacity"`
}

type deleteTableResponsePayload struct {
	ID                 string `json:"id"`
	RemovedAssignments int    `json:"removed_assignments"`
}

type realtimeEventPayload struct {
	Kind          string    `json:"kind"`
	RSVPIDs       []string  `json:"rsvp_ids,omitempty"`
	TableIDs      []string  `json:"table_ids,omitempty"`
	AssignmentIDs []string  `json:"assignment_ids,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source"`
}

func newRSVPPayload(rsvp seating.RSVP) rsvpPayload {
	names := make([]string, len(rsvp.GuestNames))
	copy(names, rsvp.GuestNames)
	return rsvpPayload{
		ID:          rsvp.ID,
		ContactInfo: rsvp.ContactInfo,
		GuestCount:  rsvp.GuestCount,
		GuestNames:  names,
		CreatedAt:   rsvp.CreatedAt,
	}
}

func newTablePayload(table seating.Table) tablePayload {
	return tablePayload{
		ID:        table.ID,
		Name:      table.Name,
		Capacity:  table.Capacity,
		CreatedAt: table.CreatedAt,
	}
}

func newAssignmentPayload(assignment seating.GuestAssignment) assignmentPayload {
	return assignmentPayload{
		ID:        assignment.ID,
		TableID:   assignment.TableID,
		RSVPID:    assignment.RSVPID,
		GuestName: assignment.GuestName,
		SeatIndex: assignment.SeatNumber,
		CreatedAt: assignment.CreatedAt,
	}
}

func newAvailableGuestPayloads(occurrences []seating.GuestOccurrence) []availableGuestPayload {
	payloads := make([]availableGuestPayload, 0, len(occurrences))
	for _, occurrence := range occurrences {
		payloads = append(payloads, availableGuestPayload{
			RSVPID:      occurrence.Key.RSVPID.String(),
			SeatIndex:   occurrence.Key.SeatIndex,
			GuestName:   occurrence.DisplayName,
			ContactInfo: occurrence.ContactInfo,
		})
	}
	return payloads
}

func newTableSeatingPayloads(seatings []seating.TableSeating) []tableSeatingPayload {
	payloads := make([]tableSeatingPayload, 0, len(seatings))
	for _, group := range seatings {
		assignments := make([]assignmentPayload, 0, len(group.Assignments))
		for _, assignment := range group.Assignments {
			assignments = append(assignments, newAssignmentPayload(assignment))
		}
		payloads = append(payloads, tableSeatingPayload{Table: newTablePayload(group.Table), Assignments: assignments})
	}
	return payloads
}

func newRealtimeEventPayload(message RealtimeMessage) realtimeEventPayload {
	return realtimeEventPayload{
		Kind:          string(message.Change.Kind),
		RSVPIDs:       message.Change.RSVPIDs,
		TableIDs:      message.Change.TableIDs,
		AssignmentIDs: message.Change.AssignmentIDs,
		Timestamp:     message.Timestamp,
		Source:        realtimeSourceBackend,
	}
}
