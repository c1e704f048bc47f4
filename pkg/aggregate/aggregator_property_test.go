//go:build property
// +build property

package aggregate_test

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Mindburn-Labs/surety/pkg/aggregate"
	"github.com/Mindburn-Labs/surety/pkg/flight"
)

type openGate struct{}

func (openGate) HasLabel(string, int) bool { return true }

// statusGen picks an arbitrary valid status.
var statusGen = gen.IntRange(0, len(flight.Statuses)-1).Map(func(i int) flight.Status {
	return flight.Statuses[i]
})

// TestDecisionIsWriteOnce verifies that for any submission sequence the
// decision is set at most once and never changes afterward.
func TestDecisionIsWriteOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("decided is set at most once and is stable", prop.ForAll(
		func(statuses []flight.Status) bool {
			a := aggregate.NewAggregator(openGate{}, nil)
			key := flight.Key{Airline: "AL1", Flight: "F", Timestamp: 1}

			fired := 0
			a.OnDecision(func(flight.Decision) { fired++ })

			var firstDecided *flight.Status
			for i, s := range statuses {
				_ = a.SubmitResponse(fmt.Sprintf("o%d", i), key, 0, s)
				if d, ok := a.Decided(key); ok {
					if firstDecided == nil {
						copied := d
						firstDecided = &copied
					} else if d != *firstDecided {
						return false // decision moved
					}
				} else if firstDecided != nil {
					return false // decision vanished
				}
			}
			return fired <= 1
		},
		gen.SliceOf(statusGen),
	))

	properties.Property("decision requires quorum matching votes", prop.ForAll(
		func(statuses []flight.Status) bool {
			a := aggregate.NewAggregator(openGate{}, nil)
			key := flight.Key{Airline: "AL1", Flight: "F", Timestamp: 1}

			counts := map[flight.Status]int{}
			for i, s := range statuses {
				_ = a.SubmitResponse(fmt.Sprintf("o%d", i), key, 0, s)
				counts[s]++
			}

			d, ok := a.Decided(key)
			anyQuorum := false
			for _, n := range counts {
				if n >= aggregate.DefaultQuorum {
					anyQuorum = true
				}
			}
			if !anyQuorum {
				return !ok
			}
			// With a quorum present, the decided value itself reached it.
			return ok && counts[d] >= aggregate.DefaultQuorum
		},
		gen.SliceOf(statusGen),
	))

	properties.TestingRun(t)
}
