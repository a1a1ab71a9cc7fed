package seating

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequentialIDProvider struct {
	mu   sync.Mutex
	next int
}

func (p *sequentialIDProvider) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("id-%04d", p.next), nil
}

// steppingClock advances one second per reading so creation order is deterministic.
type steppingClock struct {
	mu      sync.Mutex
	current time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{current: time.Date(2026, 6, 20, 16, 0, 0, 0, time.UTC)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(time.Second)
	return c.current
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []Change
}

func (n *recordingNotifier) NotifyChange(_ context.Context, change Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
	return nil
}

func (n *recordingNotifier) kinds() []ChangeKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]ChangeKind, 0, len(n.changes))
	for _, change := range n.changes {
		kinds = append(kinds, change.Kind)
	}
	return kinds
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "seating.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&RSVP{}, &Table{}, &GuestAssignment{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T, policy AssignmentPolicy, notifiers ...ChangeNotifier) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDatabase(t)
	service, err := NewService(ServiceConfig{
		Repository: NewGormRepository(db),
		Clock:      newSteppingClock().Now,
		IDProvider: &sequentialIDProvider{},
		Policy:     policy,
		Notifiers:  notifiers,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service, db
}

func mustSubmitRSVP(t *testing.T, service *Service, contact string, names ...string) RSVP {
	t.Helper()
	rsvp, err := service.SubmitRSVP(context.Background(), contact, names)
	if err != nil {
		t.Fatalf("failed to submit rsvp: %v", err)
	}
	return rsvp
}

func mustCreateTable(t *testing.T, service *Service, name string, capacity int) Table {
	t.Helper()
	table, err := service.CreateTable(context.Background(), TableInput{Name: name, Capacity: capacity})
	if err != nil {
		t.Fatalf("failed to create table %q: %v", name, err)
	}
	return table
}

func mustAssign(t *testing.T, service *Service, table Table, rsvp RSVP, seatIndex int) GuestAssignment {
	t.Helper()
	assignment, err := service.AssignGuest(context.Background(), AssignRequest{
		TableID: TableID(table.ID),
		Guest:   OccurrenceKey{RSVPID: RSVPID(rsvp.ID), SeatIndex: seatIndex},
	})
	if err != nil {
		t.Fatalf("failed to assign seat %d of %s: %v", seatIndex, rsvp.ID, err)
	}
	return assignment
}

func expectValidationReason(t *testing.T, err error, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation error %q, got nil", reason)
	}
	validationErr, ok := IsValidation(err)
	if !ok {
		t.Fatalf("expected validation error %q, got %T: %v", reason, err, err)
	}
	if validationErr.Reason != reason {
		t.Fatalf("expected reason %q, got %q", reason, validationErr.Reason)
	}
}

func containsOccurrence(occurrences []GuestOccurrence, key OccurrenceKey) bool {
	for _, occurrence := range occurrences {
		if occurrence.Key == key {
			return true
		}
	}
	return false
}
