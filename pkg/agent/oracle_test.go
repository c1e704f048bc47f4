package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Mindburn-Labs/surety/pkg/flight"
	"github.com/Mindburn-Labs/surety/pkg/oracle"
)

type recordingSubmitter struct {
	mu      sync.Mutex
	entries []submission
}

type submission struct {
	oracleID string
	key      flight.Key
	label    int
	status   flight.Status
}

func (r *recordingSubmitter) SubmitOracleResponse(oracleID string, key flight.Key, label int, status flight.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, submission{oracleID, key, label, status})
	return nil
}

func (r *recordingSubmitter) all() []submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]submission(nil), r.entries...)
}

func TestAgentAnswersOnlyHeldLabels(t *testing.T) {
	requests := make(chan flight.StatusRequest, 4)
	sub := &recordingSubmitter{}
	o := New("o1", [oracle.LabelCount]int{1, 3, 5}, requests, sub,
		FixedSource(flight.StatusOnTime), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Run(ctx)
	}()

	key := flight.Key{Airline: "AL1", Flight: "F", Timestamp: 1}
	requests <- flight.StatusRequest{ID: "r1", FlightKey: key, IndexLabel: 3}
	requests <- flight.StatusRequest{ID: "r2", FlightKey: key, IndexLabel: 7} // not held

	deadline := time.After(time.Second)
	for {
		if entries := sub.all(); len(entries) == 1 {
			if entries[0].label != 3 || entries[0].status != flight.StatusOnTime {
				t.Fatalf("unexpected submission %+v", entries[0])
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected 1 submission, got %d", len(sub.all()))
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestAgentStopsWhenSubscriptionCloses(t *testing.T) {
	requests := make(chan flight.StatusRequest)
	o := New("o1", [oracle.LabelCount]int{0, 1, 2}, requests, &recordingSubmitter{},
		FixedSource(flight.StatusOnTime), nil)

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()
	close(requests)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("closed subscription should end the run cleanly: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("agent did not stop")
	}
}

func TestRandomSourceIsDeterministicPerSeed(t *testing.T) {
	key := flight.Key{Airline: "AL1", Flight: "F", Timestamp: 1}
	a, b := RandomSource(42), RandomSource(42)
	for i := 0; i < 32; i++ {
		sa, sb := a(key), b(key)
		if sa != sb {
			t.Fatalf("draw %d diverged: %s vs %s", i, sa, sb)
		}
		if sa == flight.StatusUnknown {
			t.Fatal("agents must not report UNKNOWN")
		}
	}
}
