package server

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/seating/internal/export"
	"github.com/MarcoPoloResearchLab/seating/internal/seating"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const exportFileName = "seating.xlsx"

func (h *httpHandler) handleSubmitRSVP(c *gin.Context) {
	var request submitRSVPRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c)
		return
	}
	rsvp, err := h.seating.SubmitRSVP(c.Request.Context(), request.ContactInfo, request.GuestNames)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newRSVPPayload(rsvp))
}

func (h *httpHandler) handleListRSVPs(c *gin.Context) {
	rsvps, err := h.seating.ListRSVPs(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	payloads := make([]rsvpPayload, 0, len(rsvps))
	for _, rsvp := range rsvps {
		payloads = append(payloads, newRSVPPayload(rsvp))
	}
	c.JSON(http.StatusOK, gin.H{"rsvps": payloads})
}

func (h *httpHandler) handleDeleteRSVP(c *gin.Context) {
	rsvpID, err := seating.NewRSVPID(c.Param("id"))
	if err != nil {
		respondInvalidRequest(c)
		return
	}
	if err := h.seating.DeleteRSVP(c.Request.Context(), rsvpID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListTables(c *gin.Context) {
	tables, err := h.seating.ListTables(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	payloads := make([]tablePayload, 0, len(tables))
	for _, table := range tables {
		payloads = append(payloads, newTablePayload(table))
	}
	c.JSON(http.StatusOK, gin.H{"tables": payloads})
}

func (h *httpHandler) handleCreateTable(c *gin.Context) {
	var request tableRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c)
		return
	}
	table, err := h.seating.CreateTable(c.Request.Context(), seating.TableInput{Name: request.Name, Capacity: request.Capacity})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTablePayload(table))
}

func (h *httpHandler) handleEditTable(c *gin.Context) {
	tableID, err := seating.NewTableID(c.Param("id"))
	if err != nil {
		respondInvalidRequest(c)
		return
	}
	var request tableRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c)
		return
	}
	table, err := h.seating.EditTable(c.Request.Context(), tableID, seating.TableInput{Name: request.Name, Capacity: request.Capacity})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTablePayload(table))
}

func (h *httpHandler) handleDeleteTable(c *gin.Context) {
	tableID, err := seating.NewTableID(c.Param("id"))
	if err != nil {
		respondInvalidRequest(c)
		return
	}
	removed, err := h.seating.DeleteTable(c.Request.Context(), tableID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deleteTableResponsePayload{ID: tableID.String(), RemovedAssignments: removed})
}

func (h *httpHandler) handleListAvailableGuests(c *gin.Context) {
	available, err := h.seating.ListAvailableGuests(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guests": newAvailableGuestPayloads(available)})
}

func (h *httpHandler) handleListSeatings(c *gin.Context) {
	seatings, err := h.seating.ListSeatings(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": newTableSeatingPayloads(seatings)})
}

func (h *httpHandler) handleAssignGuest(c *gin.Context) {
	var request assignRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c)
		return
	}
	if request.SeatIndex == nil {
		h.respondError(c, &seating.ValidationError{Reason: seating.ReasonMissingSelection})
		return
	}
	assignment, err := h.seating.AssignGuest(c.Request.Context(), seating.AssignRequest{
		TableID: seating.TableID(strings.TrimSpace(request.TableID)),
		Guest: seating.OccurrenceKey{
			RSVPID:    seating.RSVPID(strings.TrimSpace(request.RSVPID)),
			SeatIndex: *request.SeatIndex,
		},
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newAssignmentPayload(assignment))
}

func (h *httpHandler) handleDeleteAssignment(c *gin.Context) {
	assignmentID, err := seating.NewAssignmentID(c.Param("id"))
	if err != nil {
		respondInvalidRequest(c)
		return
	}
	if err := h.seating.DeleteAssignment(c.Request.Context(), assignmentID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleSummary(c *gin.Context) {
	summary, err := h.seating.Summary(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaryPayload{
		RSVPCount:      summary.RSVPCount,
		GuestCount:     summary.GuestCount,
		SeatedCount:    summary.SeatedCount,
		AvailableCount: summary.AvailableCount,
		TableCount:     summary.TableCount,
		TotalCapacity:  summary.TotalCapacity,
	})
}

func (h *httpHandler) handleExportSeating(c *gin.Context) {
	chart, err := h.seating.SeatingChart(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	var buffer bytes.Buffer
	if err := export.WriteSeatingChart(&buffer, chart); err != nil {
		h.logger.Error("seating chart export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export_failed"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+exportFileName+`"`)
	c.Data(http.StatusOK, export.ContentType, buffer.Bytes())
}

func (h *httpHandler) handleStream(c *gin.Context) {
	if h.realtime == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime_unavailable"})
		return
	}
	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	h.writeHeartbeat(c)
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-stream:
			if !ok {
				return
			}
			c.SSEvent(message.EventType, newRealtimeEventPayload(message))
			c.Writer.Flush()
		case <-ticker.C:
			h.writeHeartbeat(c)
		}
	}
}

func (h *httpHandler) writeHeartbeat(c *gin.Context) {
	c.SSEvent(realtimeEventHeartbeat, gin.H{
		"source":    realtimeSourceBackend,
		"timestamp": time.Now().UTC(),
	})
	c.Writer.Flush()
}

// respondError maps the seating error taxonomy onto HTTP statuses.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	if validationErr, ok := seating.IsValidation(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation_failed", "message": validationErr.Reason})
		return
	}
	if notFoundErr, ok := seating.IsNotFound(err); ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "entity": notFoundErr.Entity, "id": notFoundErr.ID})
		return
	}
	var storeErr *seating.StoreError
	if errors.As(err, &storeErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failure", "code": storeErr.Code()})
		return
	}
	h.logger.Error("unclassified seating error", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
}

func respondInvalidRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
}
