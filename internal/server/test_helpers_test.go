package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/seating/internal/auth"
	"github.com/MarcoPoloResearchLab/seating/internal/database"
	"github.com/MarcoPoloResearchLab/seating/internal/ratelimit"
	"github.com/MarcoPoloResearchLab/seating/internal/seating"
	"github.com/MarcoPoloResearchLab/seating/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	testSigningSecret = "test-signing-secret"
	testAdminUserID   = "admin-1"
	testGuestUserID   = "guest-1"
)

type testEnvironment struct {
	handler    http.Handler
	seating    *seating.Service
	realtime   *RealtimeDispatcher
	adminToken string
	guestToken string
}

type testOptions struct {
	limiter ratelimit.Limiter
	policy  *seating.AssignmentPolicy
}

func newTestEnvironment(t *testing.T, options testOptions) *testEnvironment {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "seating.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	policy := seating.DefaultAssignmentPolicy()
	if options.policy != nil {
		policy = *options.policy
	}
	dispatcher := NewRealtimeDispatcher()
	seatingService, err := seating.NewService(seating.ServiceConfig{
		Repository: seating.NewGormRepository(db),
		IDProvider: seating.NewUUIDProvider(),
		Policy:     policy,
		Notifiers:  []seating.ChangeNotifier{dispatcher},
	})
	if err != nil {
		t.Fatalf("failed to construct seating service: %v", err)
	}
	roleService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct role service: %v", err)
	}
	if err := roleService.GrantRole(context.Background(), testAdminUserID, users.RoleAdmin); err != nil {
		t.Fatalf("failed to grant admin: %v", err)
	}

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{SigningSecret: []byte(testSigningSecret)})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        "tauth",
		TokenTTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to construct issuer: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Sessions:          validator,
		Roles:             roleService,
		Seating:           seatingService,
		RSVPLimiter:       options.limiter,
		Realtime:          dispatcher,
		HeartbeatInterval: time.Hour,
		Logger:            zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}

	return &testEnvironment{
		handler:    handler,
		seating:    seatingService,
		realtime:   dispatcher,
		adminToken: mustIssueToken(t, issuer, testAdminUserID),
		guestToken: mustIssueToken(t, issuer, testGuestUserID),
	}
}

func mustIssueToken(t *testing.T, issuer *auth.TokenIssuer, userID string) string {
	t.Helper()
	token, _, err := issuer.IssueSessionToken(context.Background(), auth.SessionIdentity{UserID: userID})
	if err != nil {
		t.Fatalf("failed to issue token for %s: %v", userID, err)
	}
	return token
}

// do performs a request against the router; token may be empty.
func (e *testEnvironment) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch typed := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(typed))
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, status int) {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, recorder.Code, recorder.Body.String())
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func seatIndex(index int) *int {
	return &index
}
