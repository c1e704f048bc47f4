package observability

import (
	"context"
	"testing"
)

// The default global provider is a no-op; instrument creation and recording
// must still succeed against it.
func TestMetricsAgainstNoopProvider(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	m.ResponseAccepted(ctx)
	m.ResponseRejected(ctx, "duplicate")
	m.Decision(ctx, "LATE_AIRLINE")
	m.PoliciesCredited(ctx, 2, 2100)
	m.DecisionLatency(ctx, 0.25)
}
