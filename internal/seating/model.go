package seating

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	maxIdentifierLength = 190
	// MaxGuestsPerRSVP bounds the number of names a single submission may carry.
	MaxGuestsPerRSVP = 20
	// MaxContactInfoLength and MaxGuestNameLength match the contact_info and guest_name columns.
	MaxContactInfoLength = 320
	MaxGuestNameLength   = 320
	// MaxTableNameLength matches the tables.name column.
	MaxTableNameLength = 190
)

var (
	// ErrInvalidRSVPID indicates that an RSVP identifier is empty or exceeds storage bounds.
	ErrInvalidRSVPID = errors.New("seating: invalid rsvp id")
	// ErrInvalidTableID indicates that a table identifier is empty or exceeds storage bounds.
	ErrInvalidTableID = errors.New("seating: invalid table id")
	// ErrInvalidAssignmentID indicates that an assignment identifier is empty or exceeds storage bounds.
	ErrInvalidAssignmentID = errors.New("seating: invalid assignment id")
)

// RSVPID represents a validated RSVP identifier.
type RSVPID string

// NewRSVPID validates raw input and returns an RSVPID.
func NewRSVPID(rawInput string) (RSVPID, error) {
	trimmed, err := parseIdentifier(rawInput, ErrInvalidRSVPID)
	return RSVPID(trimmed), err
}

// String returns the underlying string identifier.
func (id RSVPID) String() string {
	return string(id)
}

// TableID represents a validated table identifier.
type TableID string

// NewTableID validates raw input and returns a TableID.
func NewTableID(rawInput string) (TableID, error) {
	trimmed, err := parseIdentifier(rawInput, ErrInvalidTableID)
	return TableID(trimmed), err
}

// String returns the underlying string identifier.
func (id TableID) String() string {
	return string(id)
}

// AssignmentID represents a validated guest assignment identifier.
type AssignmentID string

// NewAssignmentID validates raw input and returns an AssignmentID.
func NewAssignmentID(rawInput string) (AssignmentID, error) {
	trimmed, err := parseIdentifier(rawInput, ErrInvalidAssignmentID)
	return AssignmentID(trimmed), err
}

// String returns the underlying string identifier.
func (id AssignmentID) String() string {
	return string(id)
}

func parseIdentifier(rawInput string, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", sentinel)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", sentinel, maxIdentifierLength)
	}
	return trimmed, nil
}

// OccurrenceKey addresses one named guest inside one RSVP.
type OccurrenceKey struct {
	RSVPID    RSVPID
	SeatIndex int
}

// IsZero reports whether the key carries no RSVP reference.
func (key OccurrenceKey) IsZero() bool {
	return key.RSVPID == ""
}

// GuestNames is the ordered list of guest names stored as a JSON array.
type GuestNames []string

// Value implements driver.Valuer.
func (names GuestNames) Value() (driver.Value, error) {
	if names == nil {
		return "[]", nil
	}
	encoded, err := json.Marshal([]string(names))
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

// Scan implements sql.Scanner.
func (names *GuestNames) Scan(source any) error {
	var raw []byte
	switch value := source.(type) {
	case nil:
		*names = GuestNames{}
		return nil
	case string:
		raw = []byte(value)
	case []byte:
		raw = value
	default:
		return fmt.Errorf("seating: unsupported guest names type %T", source)
	}
	decoded := []string{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("seating: decode guest names: %w", err)
	}
	*names = decoded
	return nil
}

// RSVP is one submitted attendance confirmation.
type RSVP struct {
	ID          string     `gorm:"column:id;primaryKey;size:190;not null"`
	ContactInfo string     `gorm:"column:contact_info;size:320;not null"`
	GuestCount  int        `gorm:"column:guest_count;not null"`
	GuestNames  GuestNames `gorm:"column:guest_names;type:text;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null;index:idx_rsvps_created"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (RSVP) TableName() string {
	return "rsvps"
}

// Occurrence resolves the guest seated at the provided index.
func (r RSVP) Occurrence(seatIndex int) (GuestOccurrence, bool) {
	if seatIndex < 0 || seatIndex >= len(r.GuestNames) {
		return GuestOccurrence{}, false
	}
	name := r.GuestNames[seatIndex]
	if strings.TrimSpace(name) == "" {
		return GuestOccurrence{}, false
	}
	return GuestOccurrence{
		Key:         OccurrenceKey{RSVPID: RSVPID(r.ID), SeatIndex: seatIndex},
		DisplayName: name,
		ContactInfo: r.ContactInfo,
	}, true
}

// Table is a seating table.
type Table struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	Name      string    `gorm:"column:name;size:190;not null"`
	Capacity  int       `gorm:"column:capacity;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_tables_created"`
}

// TableName provides the explicit table binding for GORM.
func (Table) TableName() string {
	return "tables"
}

// GuestAssignment binds one guest occurrence to one table.
type GuestAssignment struct {
	ID         string    `gorm:"column:id;primaryKey;size:190;not null"`
	TableID    string    `gorm:"column:table_id;size:190;not null;index:idx_guest_assignments_table"`
	RSVPID     string    `gorm:"column:rsvp_id;size:190;not null;uniqueIndex:idx_guest_assignments_occurrence,priority:1"`
	GuestName  string    `gorm:"column:guest_name;size:320;not null"`
	SeatNumber int       `gorm:"column:seat_number;not null;uniqueIndex:idx_guest_assignments_occurrence,priority:2"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (GuestAssignment) TableName() string {
	return "guest_assignments"
}

// Key returns the occurrence this assignment seats.
func (a GuestAssignment) Key() OccurrenceKey {
	return OccurrenceKey{RSVPID: RSVPID(a.RSVPID), SeatIndex: a.SeatNumber}
}

// GuestOccurrence is one named guest within one RSVP. It is derived, never stored.
type GuestOccurrence struct {
	Key         OccurrenceKey
	DisplayName string
	ContactInfo string
}

// TableSeating groups the assignments held by a single table.
type TableSeating struct {
	Table       Table
	Assignments []GuestAssignment
}

// SeatingChart is the full seating plan: every table plus the guests still waiting for a seat.
type SeatingChart struct {
	Tables    []TableSeating
	Unseated  []GuestOccurrence
	Generated time.Time
}

// Summary aggregates headline counts for the admin dashboard.
type Summary struct {
	RSVPCount      int
	GuestCount     int
	SeatedCount    int
	AvailableCount int
	TableCount     int
	TotalCapacity  int
}
