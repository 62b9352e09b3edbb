package driver

import (
	"errors"
	"math"
	"testing"

	"github.com/example/ride-assist/internal/models"
)

func seed(id int64, username string) *models.Driver {
	return &models.Driver{ID: id, Name: "Driver " + username, Username: username, Available: true}
}

func TestAddRejectsDuplicateUsername(t *testing.T) {
	g := NewRegistry()
	if err := g.Add(seed(1, "driver1")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := g.Add(seed(2, "driver1")); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestReserveRelease(t *testing.T) {
	g := NewRegistry()
	g.Add(seed(1, "driver1"))

	if err := g.Reserve(1); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := g.Reserve(1); !errors.Is(err, ErrAlreadyReserved) {
		t.Fatalf("expected ErrAlreadyReserved, got %v", err)
	}
	if err := g.Release(1); err != nil {
		t.Fatalf("Release: %v", err)
	}
	d, _ := g.ByID(1)
	if !d.Available {
		t.Fatalf("driver not available after release")
	}
	if err := g.Reserve(99); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}

func TestRecordCompletionAverages(t *testing.T) {
	g := NewRegistry()
	g.Add(seed(1, "driver1"))
	d, _ := g.ByID(1)

	if d.AverageRating != 0 {
		t.Fatalf("expected 0 average before any rides, got %f", d.AverageRating)
	}

	g.RecordCompletion(1, 60, 4)
	g.RecordCompletion(1, 70, 2)
	if d.AverageRating != 3.0 {
		t.Fatalf("expected average 3.0 after ratings [4 2], got %f", d.AverageRating)
	}
	if d.TotalRides != 2 || d.TotalEarnings != 130 {
		t.Fatalf("unexpected aggregates: rides=%d earnings=%f", d.TotalRides, d.TotalEarnings)
	}

	g2 := NewRegistry()
	g2.Add(seed(2, "driver2"))
	g2.RecordCompletion(2, 55, 5)
	d2, _ := g2.ByID(2)
	if math.Abs(d2.AverageRating-5.0) > 1e-9 {
		t.Fatalf("expected average 5.0 after single 5-star ride, got %f", d2.AverageRating)
	}
}

func TestRemoveDropsBothIndexes(t *testing.T) {
	g := NewRegistry()
	g.Add(seed(1, "driver1"))
	if !g.Remove(1) {
		t.Fatalf("Remove failed")
	}
	if _, ok := g.ByUsername("driver1"); ok {
		t.Fatalf("username index still holds removed driver")
	}
	if err := g.Add(seed(5, "driver1")); err != nil {
		t.Fatalf("username not freed after remove: %v", err)
	}
}
