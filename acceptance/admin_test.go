package acceptance

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func (ts *TestServer) adminRequest(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.SetBasicAuth(adminUser, adminPassword)
	w := httptest.NewRecorder()
	ts.Router.ServeHTTP(w, req)
	return w
}

func TestAdmin_RequiresBasicAuth(t *testing.T) {
	ts := NewTestServer(t)

	if w := ts.GET("/admin/users", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAdmin_ListUsersAndRides(t *testing.T) {
	ts := NewTestServer(t)
	alia := ts.CreateTestUser(t, "alia@demo.com")
	ts.CreateTestUser(t, "arman@demo.com")
	ts.CreateTestRide(t, alia.ID, 2)

	w := ts.adminRequest(http.MethodGet, "/admin/users")
	expectStatus(t, w, http.StatusOK)
	var users []userResponse
	decode(t, w, &users)
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}

	w = ts.adminRequest(http.MethodGet, "/admin/rides")
	expectStatus(t, w, http.StatusOK)
	var rides []rideResponse
	decode(t, w, &rides)
	if len(rides) != 1 {
		t.Errorf("expected 1 ride, got %d", len(rides))
	}
}

func TestAdmin_DeleteRideRefusedWithBookings(t *testing.T) {
	ts := NewTestServer(t)
	alia := ts.CreateTestUser(t, "alia@demo.com")
	arman := ts.CreateTestUser(t, "arman@demo.com")
	booked := ts.CreateTestRide(t, alia.ID, 2)
	empty := ts.CreateTestRide(t, alia.ID, 2)

	expectStatus(t, ts.POST(reservePath(booked.ID), map[string]int{"seats": 1}, as(arman.ID)), http.StatusCreated)

	expectError(t, ts.adminRequest(http.MethodDelete, "/admin/rides/"+booked.ID.String()), http.StatusConflict, "RIDE_HAS_BOOKINGS")
	expectStatus(t, ts.adminRequest(http.MethodDelete, "/admin/rides/"+empty.ID.String()), http.StatusNoContent)
	expectError(t, ts.adminRequest(http.MethodDelete, "/admin/rides/"+empty.ID.String()), http.StatusNotFound, "RIDE_NOT_FOUND")
}

func TestAdmin_DeleteUser(t *testing.T) {
	ts := NewTestServer(t)
	alia := ts.CreateTestUser(t, "alia@demo.com")
	arman := ts.CreateTestUser(t, "arman@demo.com")
	ts.CreateTestRide(t, alia.ID, 2)

	expectError(t, ts.adminRequest(http.MethodDelete, "/admin/users/"+alia.ID.String()), http.StatusConflict, "USER_IN_USE")
	expectStatus(t, ts.adminRequest(http.MethodDelete, "/admin/users/"+arman.ID.String()), http.StatusNoContent)
	expectError(t, ts.adminRequest(http.MethodDelete, "/admin/users/"+arman.ID.String()), http.StatusNotFound, "USER_NOT_FOUND")
}

func TestMetrics_RequiresBasicAuth(t *testing.T) {
	ts := NewTestServer(t)
	ts.GET("/health", nil)

	if w := ts.GET("/metrics", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("metrics", "metrics-secret")
	w := httptest.NewRecorder()
	ts.Router.ServeHTTP(w, req)
	expectStatus(t, w, http.StatusOK)
}
