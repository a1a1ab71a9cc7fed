package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/seating/internal/export"
	"github.com/MarcoPoloResearchLab/seating/internal/seating"
	"github.com/xuri/excelize/v2"
)

func TestSeatingFlowEndToEnd(t *testing.T) {
	env := newTestEnvironment(t, testOptions{})

	recorder := env.do(t, http.MethodPost, "/rsvps", "", submitRSVPRequestPayload{
		ContactInfo: "petrovic@example.com",
		GuestNames:  []string{"Ana", "Marko"},
	})
	expectStatus(t, recorder, http.StatusCreated)
	var rsvp rsvpPayload
	decodeBody(t, recorder, &rsvp)

	recorder = env.do(t, http.MethodPost, "/admin/tables", env.adminToken, tableRequestPayload{Name: "Sto 1", Capacity: 4})
	expectStatus(t, recorder, http.StatusCreated)
	var table tablePayload
	decodeBody(t, recorder, &table)
	recorder = env.do(t, http.MethodPost, "/admin/tables", env.adminToken, tableRequestPayload{Name: "Sto 2", Capacity: 2})
	expectStatus(t, recorder, http.StatusCreated)

	recorder = env.do(t, http.MethodPost, "/admin/assignments", env.adminToken, assignRequestPayload{TableID: table.ID, RSVPID: rsvp.ID, SeatIndex: seatIndex(0)})
	expectStatus(t, recorder, http.StatusCreated)
	recorder = env.do(t, http.MethodPost, "/admin/assignments", env.adminToken, assignRequestPayload{TableID: table.ID, RSVPID: rsvp.ID, SeatIndex: seatIndex(0)})
	expectStatus(t, recorder, http.StatusUnprocessableEntity)

	recorder = env.do(t, http.MethodGet, "/admin/export/seating.xlsx", env.adminToken, nil)
	expectStatus(t, recorder, http.StatusOK)
	if recorder.Header().Get("Content-Type") != export.ContentType {
		t.Fatalf("unexpected content type %q", recorder.Header().Get("Content-Type"))
	}
	if !strings.Contains(recorder.Header().Get("Content-Disposition"), "seating.xlsx") {
		t.Fatalf("expected attachment disposition, got %q", recorder.Header().Get("Content-Disposition"))
	}
	workbook, err := excelize.OpenReader(bytes.NewReader(recorder.Body.Bytes()))
	if err != nil {
		t.Fatalf("failed to open exported workbook: %v", err)
	}
	defer workbook.Close()
	seatingRows, err := workbook.GetRows(export.SheetSeating)
	if err != nil {
		t.Fatalf("failed to read seating sheet: %v", err)
	}
	// header, Ana at Sto 1, empty Sto 2
	if len(seatingRows) != 3 || seatingRows[1][0] != "Sto 1" || seatingRows[1][3] != "Ana" {
		t.Fatalf("unexpected seating rows %v", seatingRows)
	}
	unseatedRows, err := workbook.GetRows(export.SheetUnseated)
	if err != nil {
		t.Fatalf("failed to read unseated sheet: %v", err)
	}
	if len(unseatedRows) != 2 || unseatedRows[1][0] != "Marko" {
		t.Fatalf("unexpected unseated rows %v", unseatedRows)
	}

	recorder = env.do(t, http.MethodDelete, "/admin/tables/"+table.ID, env.adminToken, nil)
	expectStatus(t, recorder, http.StatusOK)
	var removed deleteTableResponsePayload
	decodeBody(t, recorder, &removed)
	if removed.RemovedAssignments != 1 {
		t.Fatalf("expected one cascaded assignment, got %+v", removed)
	}

	recorder = env.do(t, http.MethodGet, "/admin/guests/available", env.adminToken, nil)
	expectStatus(t, recorder, http.StatusOK)
	var available struct {
		Guests []availableGuestPayload `json:"guests"`
	}
	decodeBody(t, recorder, &available)
	if len(available.Guests) != 2 {
		t.Fatalf("expected both guests back in the pool, got %+v", available.Guests)
	}
}

func TestStreamDeliversSeatingChanges(t *testing.T) {
	env := newTestEnvironment(t, testOptions{})
	server := httptest.NewServer(env.handler)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/admin/stream", http.NoBody)
	if err != nil {
		t.Fatalf("failed to build stream request: %v", err)
	}
	request.Header.Set("Authorization", "Bearer "+env.adminToken)
	response, err := server.Client().Do(request)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected stream status 200, got %d", response.StatusCode)
	}

	reader := bufio.NewReader(response.Body)
	if eventType, _ := readServerSentEvent(t, reader); eventType != realtimeEventHeartbeat {
		t.Fatalf("expected initial heartbeat, got %q", eventType)
	}

	table, err := env.seating.CreateTable(context.Background(), seating.TableInput{Name: "Sto 1", Capacity: 4})
	if err != nil {
		t.Fatalf("failed to create table: %v", err)
	}

	eventType, data := readServerSentEvent(t, reader)
	if eventType != RealtimeEventSeatingChanged {
		t.Fatalf("expected %s event, got %q", RealtimeEventSeatingChanged, eventType)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		t.Fatalf("failed to decode event fields %q: %v", data, err)
	}
	if _, ok := fields["table_ids"]; !ok {
		t.Fatalf("expected snake_case table_ids in event %q", data)
	}
	var payload realtimeEventPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		t.Fatalf("failed to decode event payload %q: %v", data, err)
	}
	if payload.Kind != string(seating.ChangeTableCreated) || len(payload.TableIDs) != 1 || payload.TableIDs[0] != table.ID {
		t.Fatalf("unexpected event payload %+v", payload)
	}
	if payload.Source != realtimeSourceBackend {
		t.Fatalf("unexpected event source %q", payload.Source)
	}
}

func TestStreamRequiresAdmin(t *testing.T) {
	env := newTestEnvironment(t, testOptions{})
	expectStatus(t, env.do(t, http.MethodGet, "/admin/stream", env.guestToken, nil), http.StatusForbidden)
}

func readServerSentEvent(t *testing.T, reader *bufio.Reader) (string, string) {
	t.Helper()
	var eventType string
	var data strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream closed before event completed: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if eventType != "" || data.Len() > 0 {
				return eventType, data.String()
			}
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}
