package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/surety/pkg/agent"
	"github.com/Mindburn-Labs/surety/pkg/flight"
)

// TestAgentsReachQuorumEndToEnd runs real oracle agents over the dispatch
// channel. Each request reaches only the agents holding its label, so the
// test reopens the request until the accumulated responses cross quorum;
// responses are keyed by flight, so they survive reopenings.
func TestAgentsReachQuorumEndToEnd(t *testing.T) {
	e, _ := newTestEngine(t)
	key := testFlight()
	require.NoError(t, e.BuyInsurance("ins1", key, 1000))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const agents = 24
	for i := 0; i < agents; i++ {
		id := fmt.Sprintf("agent-%d", i)
		labels, err := e.RegisterOracle(id, 100)
		require.NoError(t, err)

		requests, unsub := e.Subscribe()
		t.Cleanup(unsub)
		o := agent.New(id, labels, requests, e, agent.FixedSource(flight.StatusLateAirline), nil)
		go func() { _ = o.Run(ctx) }()
	}

	deadline := time.After(10 * time.Second)
	for {
		if _, ok := e.DecidedStatus(key); ok {
			break
		}
		_, err := e.RequestFlightStatus(ctx, key.Airline, key.Flight, key.Timestamp)
		require.NoError(t, err)
		select {
		case <-deadline:
			t.Fatalf("no quorum after deadline: tally %+v", e.Tally(key))
		case <-time.After(50 * time.Millisecond):
		}
	}

	decided, _ := e.DecidedStatus(key)
	require.Equal(t, flight.StatusLateAirline, decided)
	require.EqualValues(t, 1500, e.InsureeBalance("ins1"))
}
