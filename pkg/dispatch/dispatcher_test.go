package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/Mindburn-Labs/surety/pkg/flight"
)

func testKey() flight.Key {
	return flight.Key{Airline: "AL1", Flight: "ND1309", Timestamp: 1700000000}
}

func TestRequestStatusBroadcastsToSubscribers(t *testing.T) {
	d := NewDispatcher(10, nil)
	ch, cancel := d.Subscribe()
	defer cancel()

	req, err := d.RequestStatus(context.Background(), testKey())
	if err != nil {
		t.Fatal(err)
	}
	if req.IndexLabel < 0 || req.IndexLabel >= 10 {
		t.Fatalf("label %d out of space", req.IndexLabel)
	}

	select {
	case got := <-ch:
		if got.ID != req.ID || got.FlightKey != req.FlightKey {
			t.Fatalf("subscriber saw %+v, dispatcher returned %+v", got, req)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the request")
	}
}

func TestReopenSupersedesActiveLabel(t *testing.T) {
	d := NewDispatcher(10, nil)
	key := testKey()

	first, err := d.RequestStatus(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.RequestStatus(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Fatal("reopened request must be a fresh request")
	}

	label, ok := d.ActiveLabel(key)
	if !ok {
		t.Fatal("expected an active request")
	}
	if label != second.IndexLabel {
		t.Fatalf("active label %d, want label of latest request %d", label, second.IndexLabel)
	}
}

func TestActiveLabelUnknownKey(t *testing.T) {
	d := NewDispatcher(10, nil)
	if _, ok := d.ActiveLabel(testKey()); ok {
		t.Fatal("no request was opened")
	}
}

func TestCancelledSubscriberStopsReceiving(t *testing.T) {
	d := NewDispatcher(10, nil)
	ch, cancel := d.Subscribe()
	cancel()

	if _, err := d.RequestStatus(context.Background(), testKey()); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-ch; ok {
		t.Fatal("cancelled subscription should be closed and drained")
	}
}

func TestSlowSubscriberDoesNotBlockDispatch(t *testing.T) {
	d := NewDispatcher(10, nil)
	_, cancel := d.Subscribe() // never read
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer+8; i++ {
			key := flight.Key{Airline: "AL1", Flight: "F", Timestamp: int64(i)}
			if _, err := d.RequestStatus(context.Background(), key); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher blocked on a slow subscriber")
	}
}
