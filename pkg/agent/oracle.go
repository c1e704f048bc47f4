// Package agent runs oracle workers. Each agent independently observes the
// request stream, filters by its assigned labels, decides a status, and
// submits it. Agents never coordinate; the aggregator is what turns their
// uncoordinated answers into a decision.
package agent

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/Mindburn-Labs/surety/pkg/flight"
	"github.com/Mindburn-Labs/surety/pkg/oracle"
)

// Submitter accepts oracle responses. Satisfied by *engine.Engine.
type Submitter interface {
	SubmitOracleResponse(oracleID string, key flight.Key, indexLabel int, status flight.Status) error
}

// StatusSource decides what status an oracle reports for a flight. Real
// deployments plug in a flight-data client here.
type StatusSource func(key flight.Key) flight.Status

// RandomSource reports a pseudo-random status, deterministically per seed.
// The zero-information behavior of the distilled oracle simulation.
func RandomSource(seed int64) StatusSource {
	rng := rand.New(rand.NewSource(seed))
	var mu sync.Mutex
	reportable := flight.Statuses[1:] // never report UNKNOWN
	return func(flight.Key) flight.Status {
		mu.Lock()
		defer mu.Unlock()
		return reportable[rng.Intn(len(reportable))]
	}
}

// FixedSource always reports status. Useful in tests and demos.
func FixedSource(status flight.Status) StatusSource {
	return func(flight.Key) flight.Status { return status }
}

// Oracle is one running agent.
type Oracle struct {
	id       string
	labels   [oracle.LabelCount]int
	requests <-chan flight.StatusRequest
	submit   Submitter
	source   StatusSource
	log      *slog.Logger
}

// New creates an agent consuming requests from the given subscription.
func New(id string, labels [oracle.LabelCount]int, requests <-chan flight.StatusRequest,
	submit Submitter, source StatusSource, logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{
		id:       id,
		labels:   labels,
		requests: requests,
		submit:   submit,
		source:   source,
		log:      logger.With("component", "agent", "oracle", id),
	}
}

// Run consumes requests until ctx is cancelled or the subscription closes.
// Rejected submissions (duplicate, stale, throttled) are normal operation
// and logged at debug level only.
func (o *Oracle) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-o.requests:
			if !ok {
				return nil
			}
			if !o.holds(req.IndexLabel) {
				continue
			}
			status := o.source(req.FlightKey)
			if err := o.submit.SubmitOracleResponse(o.id, req.FlightKey, req.IndexLabel, status); err != nil {
				o.log.Debug("submission rejected",
					"flight", req.FlightKey.String(), "error", err)
				continue
			}
			o.log.Debug("response submitted",
				"flight", req.FlightKey.String(), "status", string(status))
		}
	}
}

func (o *Oracle) holds(label int) bool {
	for _, l := range o.labels {
		if l == label {
			return true
		}
	}
	return false
}
