// Package aggregate implements the response aggregator, the consensus core.
// Responses are tallied per flight key; the first status value to reach the
// quorum threshold becomes the key's decision, exactly once.
package aggregate

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/Mindburn-Labs/surety/pkg/flight"
)

var (
	ErrStaleRequest      = errors.New("oracle does not hold the request's index label")
	ErrDuplicateResponse = errors.New("oracle already responded for this flight")
	ErrInvalidStatus     = errors.New("unknown status code")
	ErrRateLimited       = errors.New("oracle submission rate exceeded")
)

// DefaultQuorum is the number of matching responses that finalize a status.
const DefaultQuorum = 3

// IndexChecker answers whether an oracle holds an index label. Satisfied by
// *oracle.Registry.
type IndexChecker interface {
	HasLabel(oracleID string, label int) bool
}

// DecisionHandler observes a flight key's one-shot decision.
type DecisionHandler func(flight.Decision)

// Tally is a copy of the aggregation state for one flight key.
type Tally struct {
	FlightKey     flight.Key            `json:"flight_key"`
	VotesByStatus map[flight.Status]int `json:"votes_by_status"`
	Responded     int                   `json:"responded"`
	Decided       *flight.Status        `json:"decided,omitempty"`
}

// keyState is the mutable aggregation state for one flight key. Guarded by
// its own mutex so concurrent keys never contend.
type keyState struct {
	mu        sync.Mutex
	key       flight.Key
	votes     map[flight.Status]int
	responded map[string]bool
	decided   *flight.Status
}

// Aggregator collects oracle responses and finalizes a status per flight key
// once quorum is reached. The quorum check-and-set is atomic per key: of two
// responses racing to be the deciding vote, exactly one fires the handlers.
type Aggregator struct {
	mu       sync.Mutex
	keys     map[string]*keyState
	limiters map[string]*rate.Limiter

	checker  IndexChecker
	handlers []DecisionHandler
	quorum   int
	limit    rate.Limit
	burst    int
	log      *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithQuorum overrides the quorum threshold.
func WithQuorum(n int) Option {
	return func(a *Aggregator) { a.quorum = n }
}

// WithRateLimit enforces a per-oracle submission rate.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(a *Aggregator) {
		a.limit = limit
		a.burst = burst
	}
}

// NewAggregator creates an aggregator gated by checker.
func NewAggregator(checker IndexChecker, logger *slog.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Aggregator{
		keys:     make(map[string]*keyState),
		limiters: make(map[string]*rate.Limiter),
		checker:  checker,
		quorum:   DefaultQuorum,
		limit:    rate.Inf,
		burst:    1,
		log:      logger.With("component", "aggregate"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnDecision registers a handler fired exactly once per decided flight key.
// Handlers must be registered before submissions begin.
func (a *Aggregator) OnDecision(h DecisionHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers = append(a.handlers, h)
}

// SubmitResponse records one oracle's answer for a flight key.
//
// The response is rejected with ErrStaleRequest unless the oracle holds
// indexLabel, and with ErrDuplicateResponse if the oracle already answered
// for this key. Accepted responses after a decision are kept for bookkeeping
// but cannot change the decision.
func (a *Aggregator) SubmitResponse(oracleID string, key flight.Key, indexLabel int, status flight.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if !a.limiter(oracleID).Allow() {
		return fmt.Errorf("%w: %s", ErrRateLimited, oracleID)
	}
	if !a.checker.HasLabel(oracleID, indexLabel) {
		return fmt.Errorf("%w: oracle %s, label %d", ErrStaleRequest, oracleID, indexLabel)
	}

	st := a.state(key)

	st.mu.Lock()
	if st.responded[oracleID] {
		st.mu.Unlock()
		return fmt.Errorf("%w: oracle %s, flight %s", ErrDuplicateResponse, oracleID, key.String())
	}
	st.responded[oracleID] = true
	st.votes[status]++
	votes := st.votes[status]

	var decision *flight.Decision
	if st.decided == nil && votes >= a.quorum {
		decided := status
		st.decided = &decided
		decision = &flight.Decision{FlightKey: key, Status: status}
	}
	st.mu.Unlock()

	if decision != nil {
		a.log.Info("status decided",
			"flight", key.String(), "status", string(status), "votes", votes)
		for _, h := range a.handlers {
			h(*decision)
		}
	}
	return nil
}

// Tally returns a copy of the aggregation state for key.
func (a *Aggregator) Tally(key flight.Key) Tally {
	st := a.state(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	out := Tally{
		FlightKey:     key,
		VotesByStatus: make(map[flight.Status]int, len(st.votes)),
		Responded:     len(st.responded),
	}
	for s, n := range st.votes {
		out.VotesByStatus[s] = n
	}
	if st.decided != nil {
		decided := *st.decided
		out.Decided = &decided
	}
	return out
}

// Decided returns the finalized status for key, if any.
func (a *Aggregator) Decided(key flight.Key) (flight.Status, bool) {
	st := a.state(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.decided == nil {
		return flight.StatusUnknown, false
	}
	return *st.decided, true
}

func (a *Aggregator) state(key flight.Key) *keyState {
	a.mu.Lock()
	defer a.mu.Unlock()
	ks, ok := a.keys[key.String()]
	if !ok {
		ks = &keyState{
			key:       key,
			votes:     make(map[flight.Status]int),
			responded: make(map[string]bool),
		}
		a.keys[key.String()] = ks
	}
	return ks
}

func (a *Aggregator) limiter(oracleID string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.limiters[oracleID]
	if !ok {
		l = rate.NewLimiter(a.limit, a.burst)
		a.limiters[oracleID] = l
	}
	return l
}
