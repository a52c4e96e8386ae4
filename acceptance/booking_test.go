package acceptance

import (
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func reservePath(rideID uuid.UUID) string {
	return "/rides/" + rideID.String() + "/bookings"
}

func TestReserve_ConfirmsRideWhenFull(t *testing.T) {
	ts := NewTestServer(t)
	creator := ts.CreateTestUser(t, "alia@demo.com")
	a := ts.CreateTestUser(t, "a@demo.com")
	b := ts.CreateTestUser(t, "b@demo.com")
	r := ts.CreateTestRide(t, creator.ID, 3)

	w := ts.POST(reservePath(r.ID), map[string]interface{}{"seats": 2, "pickupLocation": "Gate 3"}, as(a.ID))
	expectStatus(t, w, http.StatusCreated)
	var booked bookingResponse
	decode(t, w, &booked)
	if booked.Status != "confirmed" || booked.SeatCount != 2 {
		t.Errorf("unexpected booking: %+v", booked)
	}

	var ride rideResponse
	decode(t, ts.GET("/rides/"+r.ID.String(), as(a.ID)), &ride)
	if ride.CurrentPassengers != 2 || ride.Status != "waiting" {
		t.Errorf("expected 2/3 waiting, got %d/3 %s", ride.CurrentPassengers, ride.Status)
	}

	expectStatus(t, ts.POST(reservePath(r.ID), map[string]int{"seats": 1}, as(b.ID)), http.StatusCreated)
	decode(t, ts.GET("/rides/"+r.ID.String(), as(a.ID)), &ride)
	if ride.CurrentPassengers != 3 || ride.Status != "confirmed" {
		t.Errorf("expected 3/3 confirmed, got %d/3 %s", ride.CurrentPassengers, ride.Status)
	}
}

func TestReserve_InsufficientCapacityReportsRemaining(t *testing.T) {
	ts := NewTestServer(t)
	creator := ts.CreateTestUser(t, "alia@demo.com")
	a := ts.CreateTestUser(t, "a@demo.com")
	b := ts.CreateTestUser(t, "b@demo.com")
	r := ts.CreateTestRide(t, creator.ID, 3)

	expectStatus(t, ts.POST(reservePath(r.ID), map[string]int{"seats": 2}, as(a.ID)), http.StatusCreated)

	resp := expectError(t, ts.POST(reservePath(r.ID), map[string]int{"seats": 2}, as(b.ID)),
		http.StatusConflict, "INSUFFICIENT_CAPACITY")
	if resp.Remaining == nil || *resp.Remaining != 1 {
		t.Errorf("expected remaining 1, got %v", resp.Remaining)
	}
}

func TestReserve_Errors(t *testing.T) {
	ts := NewTestServer(t)
	creator := ts.CreateTestUser(t, "alia@demo.com")
	a := ts.CreateTestUser(t, "a@demo.com")
	r := ts.CreateTestRide(t, creator.ID, 4)

	expectStatus(t, ts.POST(reservePath(r.ID), map[string]int{"seats": 1}, as(a.ID)), http.StatusCreated)
	expectError(t, ts.POST(reservePath(r.ID), map[string]int{"seats": 1}, as(a.ID)), http.StatusConflict, "DUPLICATE_BOOKING")
	expectError(t, ts.POST(reservePath(uuid.New()), map[string]int{"seats": 1}, as(a.ID)), http.StatusNotFound, "RIDE_NOT_FOUND")

	finished := ts.CreateTestRide(t, creator.ID, 4)
	expectStatus(t, ts.POST("/rides/"+finished.ID.String()+"/finish", nil, as(creator.ID)), http.StatusOK)
	expectError(t, ts.POST(reservePath(finished.ID), map[string]int{"seats": 1}, as(a.ID)), http.StatusConflict, "RIDE_UNAVAILABLE")
}

func TestGetBookings_NewestFirst(t *testing.T) {
	ts := NewTestServer(t)
	creator := ts.CreateTestUser(t, "alia@demo.com")
	a := ts.CreateTestUser(t, "a@demo.com")
	first := ts.CreateTestRide(t, creator.ID, 2)
	second := ts.CreateTestRide(t, creator.ID, 2)

	expectStatus(t, ts.POST(reservePath(first.ID), map[string]int{"seats": 1}, as(a.ID)), http.StatusCreated)
	expectStatus(t, ts.POST(reservePath(second.ID), map[string]int{"seats": 1}, as(a.ID)), http.StatusCreated)

	w := ts.GET("/bookings", as(a.ID))
	expectStatus(t, w, http.StatusOK)
	var bookings []bookingResponse
	decode(t, w, &bookings)
	if len(bookings) != 2 {
		t.Fatalf("expected 2 bookings, got %d", len(bookings))
	}
	if bookings[0].RideID != second.ID {
		t.Errorf("expected newest booking first")
	}

	w = ts.GET("/bookings", as(creator.ID))
	decode(t, w, &bookings)
	if len(bookings) != 0 {
		t.Errorf("expected creator to have no bookings, got %d", len(bookings))
	}
}

func TestCancelBooking(t *testing.T) {
	ts := NewTestServer(t)
	creator := ts.CreateTestUser(t, "alia@demo.com")
	a := ts.CreateTestUser(t, "a@demo.com")
	other := ts.CreateTestUser(t, "other@demo.com")
	r := ts.CreateTestRide(t, creator.ID, 2)

	w := ts.POST(reservePath(r.ID), map[string]int{"seats": 2}, as(a.ID))
	expectStatus(t, w, http.StatusCreated)
	var b bookingResponse
	decode(t, w, &b)
	path := "/bookings/" + b.ID.String() + "/cancel"

	expectError(t, ts.POST(path, nil, as(other.ID)), http.StatusForbidden, "NOT_AUTHORIZED")

	w = ts.POST(path, nil, as(a.ID))
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &b)
	if b.Status != "cancelled" || b.CancelledAt == nil {
		t.Errorf("expected cancelled booking with timestamp, got %+v", b)
	}

	var ride rideResponse
	decode(t, ts.GET("/rides/"+r.ID.String(), as(a.ID)), &ride)
	if ride.CurrentPassengers != 0 || ride.Status != "waiting" {
		t.Errorf("expected 0/2 waiting, got %d/2 %s", ride.CurrentPassengers, ride.Status)
	}

	// Cancelling again is a no-op.
	expectStatus(t, ts.POST(path, nil, as(a.ID)), http.StatusOK)

	expectError(t, ts.POST("/bookings/"+uuid.NewString()+"/cancel", nil, as(a.ID)), http.StatusNotFound, "BOOKING_NOT_FOUND")
}

func TestReserve_ConcurrentRequestsNeverOverbook(t *testing.T) {
	ts := NewTestServer(t)
	creator := ts.CreateTestUser(t, "alia@demo.com")
	r := ts.CreateTestRide(t, creator.ID, 4)

	passengers := make([]uuid.UUID, 12)
	for i := range passengers {
		passengers[i] = ts.CreateTestUser(t, uuid.NewString()[:8]+"@demo.com").ID
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for _, p := range passengers {
		wg.Add(1)
		go func(p uuid.UUID) {
			defer wg.Done()
			w := ts.POST(reservePath(r.ID), map[string]int{"seats": 1}, as(p))
			if w.Code == http.StatusCreated {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	if created != 4 {
		t.Errorf("expected exactly 4 bookings, got %d", created)
	}
	var ride rideResponse
	decode(t, ts.GET("/rides/"+r.ID.String(), as(creator.ID)), &ride)
	if ride.CurrentPassengers != 4 || ride.Status != "confirmed" {
		t.Errorf("expected 4/4 confirmed, got %d/4 %s", ride.CurrentPassengers, ride.Status)
	}
}
