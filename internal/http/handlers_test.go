package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/ride-assist/internal/auth"
	"github.com/example/ride-assist/internal/dispatch"
	"github.com/example/ride-assist/internal/lifecycle"
	"github.com/example/ride-assist/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := lifecycle.New(storage.NewMemoryStore(), lifecycle.NewFareQuoter(42), logger)
	if err := engine.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	tokens := auth.NewTokenService("test-secret", time.Hour)
	return NewServer(engine, tokens, dispatch.NewWSRegistry(logger), logger)
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, "POST", "/api/v1/passengers", "", map[string]string{
		"full_name": "Maria Santos", "phone_number": "09171234567", "password": "secret",
	})
	if w.Code != 201 {
		t.Fatalf("register passenger: status %d body %s", w.Code, w.Body.String())
	}
	var reg struct {
		Token string `json:"token"`
	}
	decode(t, w, &reg)

	w = doJSON(t, srv, "POST", "/api/v1/drivers/login", "", map[string]string{
		"username": "driver1", "password": "pass1",
	})
	if w.Code != 200 {
		t.Fatalf("driver login: status %d body %s", w.Code, w.Body.String())
	}
	var drv struct {
		Token  string `json:"token"`
		Driver struct {
			ID int64 `json:"id"`
		} `json:"driver"`
	}
	decode(t, w, &drv)

	w = doJSON(t, srv, "POST", "/api/v1/rides", reg.Token, map[string]string{
		"origin": "SM North", "destination": "Trinoma",
	})
	if w.Code != 201 {
		t.Fatalf("submit ride: status %d body %s", w.Code, w.Body.String())
	}
	var ride struct {
		ID   int64 `json:"id"`
		Fare int   `json:"fare"`
	}
	decode(t, w, &ride)
	if ride.Fare < 50 || ride.Fare > 80 {
		t.Fatalf("fare out of range: %d", ride.Fare)
	}

	w = doJSON(t, srv, "POST", fmt.Sprintf("/api/v1/rides/%d/accept", ride.ID), drv.Token, nil)
	if w.Code != 200 {
		t.Fatalf("accept: status %d body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, "POST", "/api/v1/rides/complete", drv.Token, nil)
	if w.Code != 200 {
		t.Fatalf("complete: status %d body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, "GET", "/api/v1/rides/status", reg.Token, nil)
	if w.Code != 200 {
		t.Fatalf("status: %d", w.Code)
	}

	w = doJSON(t, srv, "POST", "/api/v1/rides/rate", reg.Token, map[string]int{"stars": 5})
	if w.Code != 200 {
		t.Fatalf("rate: status %d body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, "GET", "/api/v1/drivers/me", drv.Token, nil)
	if w.Code != 200 {
		t.Fatalf("driver stats: status %d", w.Code)
	}
	var stats struct {
		TotalEarnings float64 `json:"total_earnings"`
		TotalRides    int     `json:"total_rides"`
		AverageRating float64 `json:"average_rating"`
	}
	decode(t, w, &stats)
	if stats.TotalRides != 1 || stats.AverageRating != 5 {
		t.Fatalf("driver not credited: %+v", stats)
	}
	if stats.TotalEarnings != float64(ride.Fare) {
		t.Fatalf("earnings %v != fare %d", stats.TotalEarnings, ride.Fare)
	}
}

func TestRoleGating(t *testing.T) {
	srv := newTestServer(t)

	// no token at all
	w := doJSON(t, srv, "POST", "/api/v1/rides", "", map[string]string{"origin": "a", "destination": "b"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	// driver token on a passenger route
	w = doJSON(t, srv, "POST", "/api/v1/drivers/login", "", map[string]string{"username": "driver1", "password": "pass1"})
	var drv struct {
		Token string `json:"token"`
	}
	decode(t, w, &drv)
	w = doJSON(t, srv, "POST", "/api/v1/rides", drv.Token, map[string]string{"origin": "a", "destination": "b"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	// driver token on an admin route
	w = doJSON(t, srv, "GET", "/api/v1/rides/history", drv.Token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestAdminEndpoints(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, "POST", "/api/v1/admin/login", "", map[string]string{"username": "admin", "password": "admin123"})
	if w.Code != 200 {
		t.Fatalf("admin login: %d body %s", w.Code, w.Body.String())
	}
	var admin struct {
		Token string `json:"token"`
	}
	decode(t, w, &admin)

	w = doJSON(t, srv, "POST", "/api/v1/drivers", admin.Token, map[string]string{
		"name": "Lito Perez", "vehicle": "Honda Click", "price_range": "50-80",
		"username": "driver4", "password": "pass4",
	})
	if w.Code != 201 {
		t.Fatalf("register driver: %d body %s", w.Code, w.Body.String())
	}

	// duplicate username conflicts
	w = doJSON(t, srv, "POST", "/api/v1/drivers", admin.Token, map[string]string{
		"name": "Other", "vehicle": "Honda Click", "price_range": "50-80",
		"username": "driver4", "password": "x",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", w.Code)
	}

	w = doJSON(t, srv, "GET", "/api/v1/drivers", admin.Token, nil)
	if w.Code != 200 {
		t.Fatalf("driver list: %d", w.Code)
	}
	var list []json.RawMessage
	decode(t, w, &list)
	if len(list) != 4 {
		t.Fatalf("expected 4 drivers, got %d", len(list))
	}

	w = doJSON(t, srv, "GET", "/api/v1/rides", admin.Token, nil)
	if w.Code != 200 {
		t.Fatalf("open rides: %d", w.Code)
	}

	w = doJSON(t, srv, "DELETE", "/api/v1/rides/history/0", admin.Token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting from empty history, got %d", w.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, "POST", "/api/v1/passengers/login", "", map[string]string{
		"phone_number": "09170000000", "password": "nope",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad credentials, got %d", w.Code)
	}

	w = doJSON(t, srv, "POST", "/api/v1/drivers/login", "", map[string]string{"username": "driver1", "password": "pass1"})
	var drv struct {
		Token string `json:"token"`
	}
	decode(t, w, &drv)

	w = doJSON(t, srv, "POST", "/api/v1/rides/999/accept", drv.Token, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 accepting unknown ride, got %d", w.Code)
	}

	w = doJSON(t, srv, "POST", "/api/v1/rides/complete", drv.Token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 completing with no active ride, got %d", w.Code)
	}
}
