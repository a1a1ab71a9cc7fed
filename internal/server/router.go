package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/seating/internal/auth"
	"github.com/MarcoPoloResearchLab/seating/internal/ratelimit"
	"github.com/MarcoPoloResearchLab/seating/internal/seating"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userIDContextKey         = "seating_user_id"
	defaultHeartbeatInterval = 25 * time.Second
	corsMaxAge               = 12 * time.Hour
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingRoleChecker      = errors.New("role checker dependency required")
	errMissingSeatingService   = errors.New("seating service dependency required")
)

// SessionValidator authenticates admin requests.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// RoleChecker answers whether an authenticated user may use the admin API.
type RoleChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Dependencies wires the HTTP surface to its collaborators. RSVPLimiter and Realtime are optional.
type Dependencies struct {
	Sessions          SessionValidator
	Roles             RoleChecker
	Seating           *seating.Service
	RSVPLimiter       ratelimit.Limiter
	Realtime          *RealtimeDispatcher
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

// NewHTTPHandler builds the gin router with the public and admin route groups.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Roles == nil {
		return nil, errMissingRoleChecker
	}
	if deps.Seating == nil {
		return nil, errMissingSeatingService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		sessions:  deps.Sessions,
		roles:     deps.Roles,
		seating:   deps.Seating,
		limiter:   deps.RSVPLimiter,
		realtime:  deps.Realtime,
		heartbeat: heartbeat,
		logger:    logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.POST("/rsvps", handler.rateLimitRSVP, handler.handleSubmitRSVP)

	admin := router.Group("/admin")
	admin.Use(handler.authorizeRequest, handler.requireAdmin)
	admin.GET("/rsvps", handler.handleListRSVPs)
	admin.DELETE("/rsvps/:id", handler.handleDeleteRSVP)
	admin.GET("/tables", handler.handleListTables)
	admin.POST("/tables", handler.handleCreateTable)
	admin.PUT("/tables/:id", handler.handleEditTable)
	admin.DELETE("/tables/:id", handler.handleDeleteTable)
	admin.GET("/guests/available", handler.handleListAvailableGuests)
	admin.GET("/assignments", handler.handleListSeatings)
	admin.POST("/assignments", handler.handleAssignGuest)
	admin.DELETE("/assignments/:id", handler.handleDeleteAssignment)
	admin.GET("/summary", handler.handleSummary)
	admin.GET("/export/seating.xlsx", handler.handleExportSeating)
	admin.GET("/stream", handler.handleStream)

	return router, nil
}

type httpHandler struct {
	sessions  SessionValidator
	roles     RoleChecker
	seating   *seating.Service
	limiter   ratelimit.Limiter
	realtime  *RealtimeDispatcher
	heartbeat time.Duration
	logger    *zap.Logger
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-TAuth-Tenant"},
		ExposeHeaders:    []string{"Retry-After", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	}
	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
		config.AllowCredentials = false
	} else {
		config.AllowOrigins = allowedOrigins
	}
	return cors.New(config)
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
