package seating

import (
	"context"
	"errors"
	"testing"
)

func TestSubmitRSVPStoresFilteredNames(t *testing.T) {
	service, db := newTestService(t, DefaultAssignmentPolicy())

	rsvp := mustSubmitRSVP(t, service, "+381601234567", "Ana", " ", "Marko")

	var stored RSVP
	if err := db.Where("id = ?", rsvp.ID).Take(&stored).Error; err != nil {
		t.Fatalf("failed to reload rsvp: %v", err)
	}
	if stored.GuestCount != 2 || len(stored.GuestNames) != stored.GuestCount {
		t.Fatalf("expected guest count to match names, got count %d names %v", stored.GuestCount, stored.GuestNames)
	}
	if stored.GuestNames[0] != "Ana" || stored.GuestNames[1] != "Marko" {
		t.Fatalf("unexpected stored names %v", stored.GuestNames)
	}
	if stored.ContactInfo != "+381601234567" {
		t.Fatalf("unexpected contact %q", stored.ContactInfo)
	}
}

func TestSubmitRSVPRejectsWithoutPersisting(t *testing.T) {
	service, db := newTestService(t, DefaultAssignmentPolicy())

	_, err := service.SubmitRSVP(context.Background(), "ana@example.com", []string{"", "  "})
	expectValidationReason(t, err, ReasonGuestNameRequired)

	var count int64
	if err := db.Model(&RSVP{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rsvps: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rsvp to be stored, found %d", count)
	}
}

func TestAssignAndReleaseGuestUpdatesAvailability(t *testing.T) {
	service, _ := newTestService(t, DefaultAssignmentPolicy())
	ctx := context.Background()
	rsvp := mustSubmitRSVP(t, service, "ana@example.com", "Ana", "Marko")
	table := mustCreateTable(t, service, "Sto 1", 4)
	key := OccurrenceKey{RSVPID: RSVPID(rsvp.ID), SeatIndex: 1}

	available, err := service.ListAvailableGuests(ctx)
	if err != nil {
		t.Fatalf("failed to list available guests: %v", err)
	}
	if !containsOccurrence(available, key) {
		t.Fatalf("expected Marko to be available before assignment")
	}

	assignment := mustAssign(t, service, table, rsvp, 1)
	if assignment.GuestName != "Marko" || assignment.SeatNumber != 1 || assignment.TableID != table.ID {
		t.Fatalf("unexpected assignment: %+v", assignment)
	}

	available, err = service.ListAvailableGuests(ctx)
	if err != nil {
		t.Fatalf("failed to list available guests: %v", err)
	}
	if containsOccurrence(available, key) {
		t.Fatalf("expected Marko to disappear after assignment")
	}
	if len(available) != 1 {
		t.Fatalf("expected only Ana to remain, got %d", len(available))
	}

	if err := service.DeleteAssignment(ctx, AssignmentID(assignment.ID)); err != nil {
		t.Fatalf("failed to delete assignment: %v", err)
	}
	available, err = service.ListAvailableGuests(ctx)
	if err != nil {
		t.Fatalf("failed to list available guests: %v", err)
	}
	if !containsOccurrence(available, key) {
		t.Fatalf("expected Marko to reappear after releasing the seat")
	}
}

func TestAssignGuestRejectsDuplicateOccurrence(t *testing.T) {
	service, db := newTestService(t, AssignmentPolicy{UniqueGuestNames: false})
	rsvp := mustSubmitRSVP(t, service, "ana@example.com", "Ana")
	first := mustCreateTable(t, service, "Sto 1", 4)
	second := mustCreateTable(t, service, "Sto 2", 4)
	mustAssign(t, service, first, rsvp, 0)

	_, err := service.AssignGuest(context.Background(), AssignRequest{
		TableID: TableID(second.ID),
		Guest:   OccurrenceKey{RSVPID: RSVPID(rsvp.ID), SeatIndex: 0},
	})
	expectValidationReason(t, err, ReasonGuestAlreadyAssigned)

	var count int64
	if err := db.Model(&GuestAssignment{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count assignments: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single assignment, found %d", count)
	}
}

func TestAssignGuestEnforcesTableCapacity(t *testing.T) {
	service, _ := newTestService(t, DefaultAssignmentPolicy())
	rsvp := mustSubmitRSVP(t, service, "family@example.com", "Ana", "Marko", "Ivana", "Petar", "Jovana")
	table := mustCreateTable(t, service, "Sto 1", 4)
	for seat := 0; seat < 4; seat++ {
		mustAssign(t, service, table, rsvp, seat)
	}

	_, err := service.AssignGuest(context.Background(), AssignRequest{
		TableID: TableID(table.ID),
		Guest:   OccurrenceKey{RSVPID: RSVPID(rsvp.ID), SeatIndex: 4},
	})
	expectValidationReason(t, err, ReasonTableFull)
}

func TestAssignGuestSameNameAcrossRSVPs(t *testing.T) {
	testCases := []struct {
		name       string
		policy     AssignmentPolicy
		wantReason string
	}{
		{name: "unique-names", policy: DefaultAssignmentPolicy(), wantReason: ReasonGuestAlreadyAssigned},
		{name: "occurrence-only", policy: AssignmentPolicy{UniqueGuestNames: false}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			service, _ := newTestService(t, testCase.policy)
			firstRSVP := mustSubmitRSVP(t, service, "first@example.com", "Marko")
			secondRSVP := mustSubmitRSVP(t, service, "second@example.com", "Marko")
			table := mustCreateTable(t, service, "Sto 1", 4)
			mustAssign(t, service, table, firstRSVP, 0)

			_, err := service.AssignGuest(context.Background(), AssignRequest{
				TableID: TableID(table.ID),
				Guest:   OccurrenceKey{RSVPID: RSVPID(secondRSVP.ID), SeatIndex: 0},
			})
			if testCase.wantReason == "" {
				if err != nil {
					t.Fatalf("expected second Marko to be seated, got %v", err)
				}
				return
			}
			expectValidationReason(t, err, testCase.wantReason)
		})
	}
}

func TestAssignGuestUnknownReferences(t *testing.T) {
	service, _ := newTestService(t, DefaultAssignmentPolicy())
	ctx := context.Background()
	rsvp := mustSubmitRSVP(t, service, "ana@example.com", "Ana")
	table := mustCreateTable(t, service, "Sto 1", 4)

	_, err := service.AssignGuest(ctx, AssignRequest{TableID: TableID(table.ID)})
	expectValidationReason(t, err, ReasonMissingSelection)

	_, err = service.AssignGuest(ctx, AssignRequest{
		TableID: TableID(table.ID),
		Guest:   OccurrenceKey{RSVPID: "missing-rsvp", SeatIndex: 0},
	})
	expectValidationReason(t, err, ReasonGuestNotFound)

	_, err = service.AssignGuest(ctx, AssignRequest{
		TableID: "missing-table",
		Guest:   OccurrenceKey{RSVPID: RSVPID(rsvp.ID), SeatIndex: 0},
	})
	if _, ok := IsNotFound(err); !ok {
		t.Fatalf("expected not found error for unknown table, got %v", err)
	}
}

func TestCreateTableValidatesCapacity(t *testing.T) {
	service, _ := newTestService(t, DefaultAssignmentPolicy())
	ctx := context.Background()

	_, err := service.CreateTable(ctx, TableInput{Name: "Table A", Capacity: 0})
	expectValidationReason(t, err, ReasonCapacityNotPositive)

	_, err = service.CreateTable(ctx, TableInput{Name: "   ", Capacity: 5})
	expectValidationReason(t, err, ReasonTableNameRequired)

	created := mustCreateTable(t, service, "Table A", 5)
	tables, err := service.ListTables(ctx)
	if err != nil {
		t.Fatalf("failed to list tables: %v", err)
	}
	if len(tables) != 1 || tables[0].ID != created.ID || tables[0].Capacity != 5 || tables[0].Name != "Table A" {
		t.Fatalf("unexpected tables: %+v", tables)
	}
}

func TestEditTableKeepsAssignmentsAndGuardsCapacity(t *testing.T) {
	service, _ := newTestService(t, DefaultAssignmentPolicy())
	ctx := context.Background()
	rsvp := mustSubmitRSVP(t, service, "ana@example.com", "Ana", "Marko", "Ivana")
	table := mustCreateTable(t, service, "Sto 1", 4)
	for seat := 0; seat < 3; seat++ {
		mustAssign(t, service, table, rsvp, seat)
	}

	_, err := service.EditTable(ctx, TableID(table.ID), TableInput{Name: "Sto 1", Capacity: 2})
	expectValidationReason(t, err, ReasonCapacityBelowAssigned)

	updated, err := service.EditTable(ctx, TableID(table.ID), TableInput{Name: " Kumovi ", Capacity: 3})
	if err != nil {
		t.Fatalf("unexpected edit error: %v", err)
	}
	if updated.Name != "Kumovi" || updated.Capacity != 3 {
		t.Fatalf("unexpected updated table: %+v", updated)
	}

	seatings, err := service.ListSeatings(ctx, "")
	if err != nil {
		t.Fatalf("failed to list seatings: %v", err)
	}
	if len(seatings) != 1 || len(seatings[0].Assignments) != 3 || seatings[0].Table.Name != "Kumovi" {
		t.Fatalf("expected assignments to survive the edit, got %+v", seatings)
	}

	_, err = service.EditTable(ctx, "missing-table", TableInput{Name: "Sto", Capacity: 3})
	if _, ok := IsNotFound(err); !ok {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestDeleteTableCascadesAssignments(t *testing.T) {
	service, db := newTestService(t, DefaultAssignmentPolicy())
	ctx := context.Background()
	rsvp := mustSubmitRSVP(t, service, "ana@example.com", "Ana", "Marko")
	doomed := mustCreateTable(t, service, "Sto 1", 4)
	kept := mustCreateTable(t, service, "Sto 2", 4)
	mustAssign(t, service, doomed, rsvp, 0)
	mustAssign(t, service, kept, rsvp, 1)

	removed, err := service.DeleteTable(ctx, TableID(doomed.ID))
	if err != nil {
		t.Fatalf("failed to delete table: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one cascaded assignment, got %d", removed)
	}

	var dangling int64
	if err := db.Model(&GuestAssignment{}).Where("table_id = ?", doomed.ID).Count(&dangling).Error; err != nil {
		t.Fatalf("failed to count assignments: %v", err)
	}
	if dangling != 0 {
		t.Fatalf("expected no dangling assignments, found %d", dangling)
	}

	available, err := service.ListAvailableGuests(ctx)
	if err != nil {
		t.Fatalf("failed to list available guests: %v", err)
	}
	if len(available) != 1 || available[0].DisplayName != "Ana" {
		t.Fatalf("expected Ana to become available again, got %+v", available)
	}

	if _, err := service.DeleteTable(ctx, TableID(doomed.ID)); err == nil {
		t.Fatalf("expected deleting a missing table to fail")
	}
}

func TestDeleteRSVPCascadesAssignments(t *testing.T) {
	service, db := newTestService(t, DefaultAssignmentPolicy())
	ctx := context.Background()
	rsvp := mustSubmitRSVP(t, service, "ana@example.com", "Ana", "Marko")
	table := mustCreateTable(t, service, "Sto 1", 4)
	mustAssign(t, service, table, rsvp, 0)
	mustAssign(t, service, table, rsvp, 1)

	if err := service.DeleteRSVP(ctx, RSVPID(rsvp.ID)); err != nil {
		t.Fatalf("failed to delete rsvp: %v", err)
	}

	var remaining int64
	if err := db.Model(&GuestAssignment{}).Count(&remaining).Error; err != nil {
		t.Fatalf("failed to count assignments: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected assignments to be removed with their rsvp, found %d", remaining)
	}

	err := service.DeleteRSVP(ctx, RSVPID(rsvp.ID))
	notFoundErr, ok := IsNotFound(err)
	if !ok || notFoundErr.Entity != EntityRSVP {
		t.Fatalf("expected rsvp not found error, got %v", err)
	}
}

func TestDeleteAssignmentUnknownID(t *testing.T) {
	service, _ := newTestService(t, DefaultAssignmentPolicy())

	err := service.DeleteAssignment(context.Background(), "missing-assignment")
	notFoundErr, ok := IsNotFound(err)
	if !ok || notFoundErr.Entity != EntityAssignment {
		t.Fatalf("expected assignment not found error, got %v", err)
	}
}

func TestListRSVPsNewestFirstWithSearch(t *testing.T) {
	service, _ := newTestService(t, DefaultAssignmentPolicy())
	ctx := context.Background()
	older := mustSubmitRSVP(t, service, "+381601234567", "Ana")
	newer := mustSubmitRSVP(t, service, "jovana@example.com", "Jovana", "Marko")

	all, err := service.ListRSVPs(ctx, "")
	if err != nil {
		t.Fatalf("failed to list rsvps: %v", err)
	}
	if len(all) != 2 || all[0].ID != newer.ID || all[1].ID != older.ID {
		t.Fatalf("expected newest first, got %+v", all)
	}

	matched, err := service.ListRSVPs(ctx, "marko")
	if err != nil {
		t.Fatalf("failed to search rsvps: %v", err)
	}
	if len(matched) != 1 || matched[0].ID != newer.ID {
		t.Fatalf("unexpected search result: %+v", matched)
	}
}

func TestListSeatingsFiltersByGuestName(t *testing.T) {
	service, _ := newTestService(t, DefaultAssignmentPolicy())
	ctx := context.Background()
	rsvp := mustSubmitRSVP(t, service, "ana@example.com", "Ana", "Marko")
	first := mustCreateTable(t, service, "Sto 1", 4)
	second := mustCreateTable(t, service, "Sto 2", 4)
	mustAssign(t, service, first, rsvp, 0)
	mustAssign(t, service, second, rsvp, 1)

	seatings, err := service.ListSeatings(ctx, "mar")
	if err != nil {
		t.Fatalf("failed to list seatings: %v", err)
	}
	if len(seatings) != 1 || seatings[0].Table.ID != second.ID {
		t.Fatalf("expected only the table holding Marko, got %+v", seatings)
	}
}

func TestSummaryAndSeatingChart(t *testing.T) {
	service, _ := newTestService(t, DefaultAssignmentPolicy())
	ctx := context.Background()
	rsvp := mustSubmitRSVP(t, service, "ana@example.com", "Ana", "Marko")
	mustSubmitRSVP(t, service, "ivana@example.com", "Ivana")
	table := mustCreateTable(t, service, "Sto 1", 4)
	mustCreateTable(t, service, "Sto 2", 6)
	mustAssign(t, service, table, rsvp, 0)

	summary, err := service.Summary(ctx)
	if err != nil {
		t.Fatalf("failed to compute summary: %v", err)
	}
	want := Summary{RSVPCount: 2, GuestCount: 3, SeatedCount: 1, AvailableCount: 2, TableCount: 2, TotalCapacity: 10}
	if summary != want {
		t.Fatalf("unexpected summary: got %+v want %+v", summary, want)
	}

	chart, err := service.SeatingChart(ctx)
	if err != nil {
		t.Fatalf("failed to build chart: %v", err)
	}
	if len(chart.Tables) != 2 || len(chart.Unseated) != 2 {
		t.Fatalf("unexpected chart: %+v", chart)
	}
}

func TestServiceNotifiesCommittedChanges(t *testing.T) {
	notifier := &recordingNotifier{}
	service, _ := newTestService(t, DefaultAssignmentPolicy(), notifier)
	ctx := context.Background()
	rsvp := mustSubmitRSVP(t, service, "ana@example.com", "Ana")
	table := mustCreateTable(t, service, "Sto 1", 1)
	assignment := mustAssign(t, service, table, rsvp, 0)

	if _, err := service.AssignGuest(ctx, AssignRequest{
		TableID: TableID(table.ID),
		Guest:   OccurrenceKey{RSVPID: RSVPID(rsvp.ID), SeatIndex: 0},
	}); err == nil {
		t.Fatalf("expected duplicate assignment to fail")
	}
	if err := service.DeleteAssignment(ctx, AssignmentID(assignment.ID)); err != nil {
		t.Fatalf("failed to delete assignment: %v", err)
	}

	got := notifier.kinds()
	want := []ChangeKind{ChangeRSVPSubmitted, ChangeTableCreated, ChangeGuestAssigned, ChangeAssignmentDeleted}
	if len(got) != len(want) {
		t.Fatalf("unexpected change kinds: %v", got)
	}
	for index := range want {
		if got[index] != want[index] {
			t.Fatalf("unexpected change at %d: got %s want %s", index, got[index], want[index])
		}
	}
}

func TestNotifierFailureDoesNotFailMutation(t *testing.T) {
	failing := ChangeNotifierFunc(func(context.Context, Change) error {
		return errors.New("broker unavailable")
	})
	service, _ := newTestService(t, DefaultAssignmentPolicy(), failing)

	if _, err := service.CreateTable(context.Background(), TableInput{Name: "Sto 1", Capacity: 4}); err != nil {
		t.Fatalf("expected mutation to succeed despite notifier failure, got %v", err)
	}
}

func TestZeroServiceReportsStoreErrorCode(t *testing.T) {
	service := &Service{}

	_, err := service.ListTables(context.Background())
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if storeErr.Code() != "seating.list_tables.missing_repository" {
		t.Fatalf("unexpected store error code %q", storeErr.Code())
	}
}

func TestGormRepositoryRejectsDuplicateOccurrence(t *testing.T) {
	db := openTestDatabase(t)
	repository := NewGormRepository(db)
	ctx := context.Background()

	first := GuestAssignment{ID: "a-1", TableID: "table-1", RSVPID: "rsvp-1", GuestName: "Ana", SeatNumber: 0}
	if err := repository.Assignments().CreateAssignment(ctx, &first); err != nil {
		t.Fatalf("failed to insert first assignment: %v", err)
	}
	second := GuestAssignment{ID: "a-2", TableID: "table-2", RSVPID: "rsvp-1", GuestName: "Ana", SeatNumber: 0}
	err := repository.Assignments().CreateAssignment(ctx, &second)
	if !errors.Is(err, ErrDuplicateOccurrence) {
		t.Fatalf("expected duplicate occurrence error, got %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceConfig{IDProvider: NewUUIDProvider()}); err == nil {
		t.Fatalf("expected missing repository error")
	}
	if _, err := NewService(ServiceConfig{Repository: NewGormRepository(openTestDatabase(t))}); err == nil {
		t.Fatalf("expected missing id provider error")
	}
}
