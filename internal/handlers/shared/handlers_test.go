package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"carhire/internal/middleware"
	"carhire/internal/models"
	"carhire/internal/repositories/documents"
	"carhire/internal/services"
	"carhire/internal/utils"
	"carhire/pkg/docstore"
	"carhire/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ──────────────────────────────────────────────
// Error mapping
// ──────────────────────────────────────────────

func TestRespondError_MapsKindsToStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrNotParticipant, http.StatusForbidden, "FORBIDDEN"},
		{fmt.Errorf("%w: trip", services.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{services.ErrInvalidOTP, http.StatusBadRequest, "VALIDATION_ERROR"},
		{services.ErrTripNotActive, http.StatusConflict, "CONFLICT"},
		{services.ErrPositionUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{services.ErrTrackingLinkExpired, http.StatusGone, "LINK_EXPIRED"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		respondError(c, logger.NewNopLogger(), tt.err)

		if rec.Code != tt.status {
			t.Errorf("%v: expected status %d, got %d", tt.err, tt.status, rec.Code)
		}
		var body utils.APIResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%v: invalid body: %v", tt.err, err)
		}
		if body.Error == nil || body.Error.Code != tt.code {
			t.Errorf("%v: expected code %s, got %+v", tt.err, tt.code, body.Error)
		}
		if got := errorCode(tt.err); got != tt.code {
			t.Errorf("%v: expected frame code %s, got %s", tt.err, tt.code, got)
		}
	}
}

func TestErrorFrame_UsesUniformExpiredCopy(t *testing.T) {
	t.Parallel()

	frame := errorFrame(services.ErrTrackingLinkExpired)
	if frame["message"] != utils.ErrLinkExpired || frame["code"] != "LINK_EXPIRED" {
		t.Errorf("unexpected frame %v", frame)
	}
}

func TestBindJSON_ReportsFieldDetails(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.POST("/rate", func(c *gin.Context) {
		var request struct {
			Rating int `json:"rating" binding:"required,rating_value"`
		}
		if !bindJSON(c, &request) {
			return
		}
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rate", strings.NewReader(`{"rating":9}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body utils.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body.Error == nil || body.Error.Code != "VALIDATION_ERROR" || body.Error.Details["Rating"] == "" {
		t.Errorf("expected a Rating detail, got %+v", body.Error)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rate", strings.NewReader(`{"rating":`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", rec.Code)
	}
}

// ──────────────────────────────────────────────
// Trip routes
// ──────────────────────────────────────────────

const testSecret = "handler-secret"

func newTripRouter(t *testing.T) *gin.Engine {
	t.Helper()
	store := docstore.NewMemoryStore()
	users := documents.NewUserRepository(store)
	trips := documents.NewTripRepository(store)
	ctx := context.Background()
	for _, u := range []*models.User{
		{ID: "c1", Name: "Cara", Role: models.RoleCustomer},
		{ID: "d1", Name: "Dev", Role: models.RoleDriver},
	} {
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
	}

	log := logger.NewNopLogger()
	tripService := services.NewTripService(store, trips, users, nil, nil, log)
	h := NewTripHandler(tripService, nil, log)

	r := gin.New()
	api := r.Group("/trips", middleware.AuthRequired(testSecret, log))
	api.POST("", h.CreateTrip)
	api.GET("/:id", h.GetTrip)
	api.POST("/:id/cancel", h.CancelTrip)
	return r
}

func do(t *testing.T, r *gin.Engine, method, target, userID, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := utils.GenerateAccessToken(userID, role, testSecret, 0)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestTripRoutes(t *testing.T) {
	t.Parallel()

	r := newTripRouter(t)

	rec := do(t, r, http.MethodPost, "/trips", "c1", "customer", `{"driver_id":"d1","pickup_location":"Airport","destination":"Hotel"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data models.Trip `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	tripID := created.Data.ID
	if tripID == "" {
		t.Fatal("expected a trip id")
	}

	if rec := do(t, r, http.MethodPost, "/trips", "c1", "customer", `{"driver_id":"d1"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing fields, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/trips/"+tripID, "x9", "customer", ""); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for outsider, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/trips/missing", "c1", "customer", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown trip, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/trips/"+tripID+"/cancel", "d1", "driver", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on cancel, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, r, http.MethodPost, "/trips/"+tripID+"/cancel", "d1", "driver", ""); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on second cancel, got %d", rec.Code)
	}
}
