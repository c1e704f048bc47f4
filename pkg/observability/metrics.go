// Package observability exposes the engine's OpenTelemetry instruments.
// The library records against the global meter provider; exporter wiring is
// the embedding process's concern.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/Mindburn-Labs/surety"

// Metrics bundles the engine's instruments.
type Metrics struct {
	responsesAccepted metric.Int64Counter
	responsesRejected metric.Int64Counter
	decisions         metric.Int64Counter
	policiesCredited  metric.Int64Counter
	payouts           metric.Int64Counter
	decisionLatency   metric.Float64Histogram
}

// NewMetrics creates the instrument set on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	m := &Metrics{}
	var err error

	if m.responsesAccepted, err = meter.Int64Counter("surety.responses.accepted",
		metric.WithDescription("Oracle responses accepted into a tally")); err != nil {
		return nil, fmt.Errorf("create instrument: %w", err)
	}
	if m.responsesRejected, err = meter.Int64Counter("surety.responses.rejected",
		metric.WithDescription("Oracle responses rejected (stale, duplicate, throttled)")); err != nil {
		return nil, fmt.Errorf("create instrument: %w", err)
	}
	if m.decisions, err = meter.Int64Counter("surety.decisions",
		metric.WithDescription("Flight statuses finalized by quorum")); err != nil {
		return nil, fmt.Errorf("create instrument: %w", err)
	}
	if m.policiesCredited, err = meter.Int64Counter("surety.policies.credited",
		metric.WithDescription("Policies credited after an airline-fault decision")); err != nil {
		return nil, fmt.Errorf("create instrument: %w", err)
	}
	if m.payouts, err = meter.Int64Counter("surety.payouts.minor_units",
		metric.WithDescription("Minor units paid out through the external ledger")); err != nil {
		return nil, fmt.Errorf("create instrument: %w", err)
	}
	if m.decisionLatency, err = meter.Float64Histogram("surety.decision.latency_seconds",
		metric.WithDescription("Seconds between request open and quorum decision")); err != nil {
		return nil, fmt.Errorf("create instrument: %w", err)
	}
	return m, nil
}

// ResponseAccepted records one tallied response.
func (m *Metrics) ResponseAccepted(ctx context.Context) {
	m.responsesAccepted.Add(ctx, 1)
}

// ResponseRejected records one rejected response with its reason.
func (m *Metrics) ResponseRejected(ctx context.Context, reason string) {
	m.responsesRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Decision records one finalized status.
func (m *Metrics) Decision(ctx context.Context, status string) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// PoliciesCredited records a settlement pass.
func (m *Metrics) PoliciesCredited(ctx context.Context, count int, totalMinor int64) {
	m.policiesCredited.Add(ctx, int64(count))
	m.payouts.Add(ctx, totalMinor)
}

// DecisionLatency records the request-to-decision interval.
func (m *Metrics) DecisionLatency(ctx context.Context, seconds float64) {
	m.decisionLatency.Record(ctx, seconds)
}
