package ride

import (
	"testing"

	"github.com/example/ride-assist/internal/models"
)

func req(id int64, phone string) *models.RideRequest {
	return &models.RideRequest{ID: id, PassengerPhone: phone, Status: models.StatusPending, DriverID: models.NoDriver}
}

func TestPartitionExclusivity(t *testing.T) {
	l := NewLedger()
	l.AddPending(req(1, "0917"))

	if _, ok := l.Activate(1); !ok {
		t.Fatalf("activate pending ride failed")
	}
	if _, ok := l.PendingByID(1); ok {
		t.Fatalf("ride still pending after activate")
	}
	if _, ok := l.Park(1); !ok {
		t.Fatalf("park active ride failed")
	}
	if _, ok := l.ActiveByDriver(models.NoDriver); ok {
		t.Fatalf("ride still active after park")
	}
	if _, ok := l.Settle("0917"); !ok {
		t.Fatalf("settle awaiting ride failed")
	}
	if _, ok := l.Awaiting("0917"); ok {
		t.Fatalf("awaiting slot still occupied after settle")
	}

	p, a, w, h := l.Counts()
	if p != 0 || a != 0 || w != 0 || h != 1 {
		t.Fatalf("expected only history occupied, got %d/%d/%d/%d", p, a, w, h)
	}
}

func TestParkRefusesSecondRideForSamePassenger(t *testing.T) {
	l := NewLedger()
	l.AddPending(req(1, "0917"))
	l.AddPending(req(2, "0917"))
	l.Activate(1)
	l.Activate(2)

	if _, ok := l.Park(1); !ok {
		t.Fatalf("first park failed")
	}
	if _, ok := l.Park(2); ok {
		t.Fatalf("expected second park for same passenger to be refused")
	}
	// the refused ride must stay active
	if len(l.ActiveRides()) != 1 {
		t.Fatalf("refused ride left the active partition")
	}
}

func TestAwaitingByDriver(t *testing.T) {
	l := NewLedger()
	r := req(1, "0917")
	r.DriverID = 7
	l.AddPending(r)
	l.Activate(1)

	if _, ok := l.AwaitingByDriver(7); ok {
		t.Fatalf("active ride reported as awaiting")
	}
	l.Park(1)
	if got, ok := l.AwaitingByDriver(7); !ok || got.ID != 1 {
		t.Fatalf("parked ride not found by driver id")
	}
	if _, ok := l.AwaitingByDriver(8); ok {
		t.Fatalf("unassigned driver id matched an awaiting ride")
	}
	l.Settle("0917")
	if _, ok := l.AwaitingByDriver(7); ok {
		t.Fatalf("settled ride still reported as awaiting")
	}
}

func TestRemovePendingOnlyTouchesPending(t *testing.T) {
	l := NewLedger()
	l.AddPending(req(1, "0917"))
	l.Activate(1)

	if l.RemovePending(1) {
		t.Fatalf("expected remove of non-pending ride to fail")
	}
	if len(l.ActiveRides()) != 1 {
		t.Fatalf("active partition changed by failed remove")
	}
}

func TestRemoveHistory(t *testing.T) {
	l := NewLedger()
	l.AddHistory(models.RideRequest{ID: 1, Status: models.StatusRated})
	l.AddHistory(models.RideRequest{ID: 2, Status: models.StatusRated})

	if l.RemoveHistory(5) {
		t.Fatalf("expected out-of-range delete to fail")
	}
	if !l.RemoveHistory(0) {
		t.Fatalf("delete of first entry failed")
	}
	h := l.History()
	if len(h) != 1 || h[0].ID != 2 {
		t.Fatalf("unexpected history after delete: %+v", h)
	}
}
