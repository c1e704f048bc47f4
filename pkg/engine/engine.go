// Package engine wires the registry, dispatcher, aggregator, governance,
// and insurance ledger into one service surface. Every state-mutating call
// is gated on the governance operational flag; quorum decisions flow through
// the payout policy into settlement and the audit log.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mindburn-Labs/surety/pkg/aggregate"
	"github.com/Mindburn-Labs/surety/pkg/audit"
	"github.com/Mindburn-Labs/surety/pkg/config"
	"github.com/Mindburn-Labs/surety/pkg/dispatch"
	"github.com/Mindburn-Labs/surety/pkg/flight"
	"github.com/Mindburn-Labs/surety/pkg/governance"
	"github.com/Mindburn-Labs/surety/pkg/insurance"
	"github.com/Mindburn-Labs/surety/pkg/ledger"
	"github.com/Mindburn-Labs/surety/pkg/observability"
	"github.com/Mindburn-Labs/surety/pkg/oracle"
	"github.com/Mindburn-Labs/surety/pkg/policy"
	"github.com/Mindburn-Labs/surety/pkg/store"

	"golang.org/x/time/rate"
)

// Engine is the service facade. Construct with New; zero value is unusable.
type Engine struct {
	registry   *oracle.Registry
	dispatcher *dispatch.Dispatcher
	aggregator *aggregate.Aggregator
	gov        *governance.Governance
	book       *insurance.Ledger
	payout     *policy.PayoutPolicy
	auditLog   *audit.Log
	metrics    *observability.Metrics
	snapshots  *store.SQLiteStore
	log        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSnapshots persists policy and airline state into s as it changes.
// Snapshot failures are logged, never fatal to the triggering call.
func WithSnapshots(s *store.SQLiteStore) Option {
	return func(e *Engine) { e.snapshots = s }
}

// New builds an engine from cfg, settling value against extLedger.
func New(cfg *config.Config, extLedger ledger.Ledger, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	registry, err := oracle.NewRegistry(cfg.LabelSpace, cfg.RegistrationFeeMinor)
	if err != nil {
		return nil, err
	}

	aggOpts := []aggregate.Option{aggregate.WithQuorum(cfg.QuorumSize)}
	if cfg.OracleRatePerSec > 0 {
		aggOpts = append(aggOpts,
			aggregate.WithRateLimit(rate.Limit(cfg.OracleRatePerSec), cfg.OracleBurst))
	}

	gov := governance.New(cfg.Owner, cfg.FundingMinor, logger)
	if err := gov.RegisterFounding(cfg.FoundingAirline); err != nil {
		return nil, err
	}

	book, err := insurance.New(extLedger, cfg.PremiumCapMinor,
		cfg.MultiplierNum, cfg.MultiplierDen, logger)
	if err != nil {
		return nil, err
	}

	payout, err := policy.New(cfg.PayoutExpression)
	if err != nil {
		return nil, err
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		registry:   registry,
		dispatcher: dispatch.NewDispatcher(cfg.LabelSpace, logger),
		aggregator: aggregate.NewAggregator(registry, logger, aggOpts...),
		gov:        gov,
		book:       book,
		payout:     payout,
		auditLog:   audit.NewLog(),
		metrics:    metrics,
		log:        logger.With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	// Registered once here, so duplicate quorum triggers cannot double-credit.
	e.aggregator.OnDecision(e.onDecision)
	return e, nil
}

// RegisterOracle admits an oracle against the registration fee and returns
// its index labels.
func (e *Engine) RegisterOracle(oracleID string, feeMinor int64) ([oracle.LabelCount]int, error) {
	if err := e.gate(); err != nil {
		return [oracle.LabelCount]int{}, err
	}
	labels, err := e.registry.Register(oracleID, feeMinor)
	if err != nil {
		return labels, err
	}
	e.appendAudit(audit.EntryOracleRegistered, oracleID, map[string]any{
		"labels": labels[:],
	})
	return labels, nil
}

// OracleIndexes returns the labels assigned to a registered oracle.
func (e *Engine) OracleIndexes(oracleID string) ([oracle.LabelCount]int, error) {
	return e.registry.IndexesOf(oracleID)
}

// RequestFlightStatus opens a status request for the flight and broadcasts
// it to subscribed oracles.
func (e *Engine) RequestFlightStatus(ctx context.Context, airline, flightCode string, timestamp int64) (flight.StatusRequest, error) {
	if err := e.gate(); err != nil {
		return flight.StatusRequest{}, err
	}
	key := flight.Key{Airline: airline, Flight: flightCode, Timestamp: timestamp}
	req, err := e.dispatcher.RequestStatus(ctx, key)
	if err != nil {
		return flight.StatusRequest{}, err
	}
	e.appendAudit(audit.EntryRequestOpened, key.String(), map[string]any{
		"request_id":  req.ID,
		"index_label": req.IndexLabel,
	})
	return req, nil
}

// SubmitOracleResponse records one oracle's answer.
func (e *Engine) SubmitOracleResponse(oracleID string, key flight.Key, indexLabel int, status flight.Status) error {
	if err := e.gate(); err != nil {
		return err
	}
	if err := e.aggregator.SubmitResponse(oracleID, key, indexLabel, status); err != nil {
		e.metrics.ResponseRejected(context.Background(), rejectionReason(err))
		return err
	}
	e.metrics.ResponseAccepted(context.Background())
	return nil
}

// BuyInsurance records a policy for the insuree on the flight.
func (e *Engine) BuyInsurance(insuree string, key flight.Key, premiumMinor int64) error {
	if err := e.gate(); err != nil {
		return err
	}
	if err := e.book.Buy(insuree, key, premiumMinor); err != nil {
		return err
	}
	e.snapshotPolicies(key)
	return nil
}

// RegisterAirline registers (or votes for) a candidate airline.
func (e *Engine) RegisterAirline(caller, candidate string) (bool, error) {
	if err := e.gate(); err != nil {
		return false, err
	}
	committed, err := e.gov.RegisterAirline(caller, candidate)
	if err == nil {
		e.snapshotAirlines()
	}
	return committed, err
}

// FundAirline records an airline's stake deposit.
func (e *Engine) FundAirline(airline string, amountMinor int64) error {
	if err := e.gate(); err != nil {
		return err
	}
	if err := e.gov.FundAirline(airline, amountMinor); err != nil {
		return err
	}
	e.snapshotAirlines()
	return nil
}

// Withdraw pays out the insuree's credited balance.
func (e *Engine) Withdraw(insuree string) (int64, error) {
	if err := e.gate(); err != nil {
		return 0, err
	}
	amount, err := e.book.Withdraw(insuree)
	if err != nil {
		return 0, err
	}
	e.appendAudit(audit.EntryWithdrawal, insuree, map[string]any{
		"amount_minor": amount,
	})
	return amount, nil
}

// SetOperationalStatus toggles the global flag. Deliberately not gated: it
// is the call that restores a disabled system.
func (e *Engine) SetOperationalStatus(caller string, mode bool) (bool, error) {
	committed, err := e.gov.SetOperational(caller, mode)
	if err == nil && committed {
		e.appendAudit(audit.EntryOperational, caller, map[string]any{
			"operational": mode,
		})
	}
	return committed, err
}

// IsOperational reports the global flag.
func (e *Engine) IsOperational() bool {
	return e.gov.IsOperational()
}

// InsureeBalance returns the insuree's credited, unwithdrawn funds.
func (e *Engine) InsureeBalance(insuree string) int64 {
	return e.book.Balance(insuree)
}

// Tally returns the aggregation state for a flight key.
func (e *Engine) Tally(key flight.Key) aggregate.Tally {
	return e.aggregator.Tally(key)
}

// DecidedStatus returns the finalized status for a flight key, if any.
func (e *Engine) DecidedStatus(key flight.Key) (flight.Status, bool) {
	return e.aggregator.Decided(key)
}

// Subscribe attaches an oracle agent to the request stream.
func (e *Engine) Subscribe() (<-chan flight.StatusRequest, func()) {
	return e.dispatcher.Subscribe()
}

// AttachBroadcaster adds an out-of-process request transport.
func (e *Engine) AttachBroadcaster(b dispatch.Broadcaster) {
	e.dispatcher.AttachBroadcaster(b)
}

// Audit exposes the settlement audit log.
func (e *Engine) Audit() *audit.Log {
	return e.auditLog
}

// Governance exposes the airline record set.
func (e *Engine) Governance() *governance.Governance {
	return e.gov
}

// onDecision is the aggregator's one-shot callback per decided flight key.
func (e *Engine) onDecision(d flight.Decision) {
	ctx := context.Background()
	e.metrics.Decision(ctx, string(d.Status))
	e.appendAudit(audit.EntryStatusDecided, d.FlightKey.String(), map[string]any{
		"status": string(d.Status),
	})
	if req, ok := e.dispatcher.ActiveRequest(d.FlightKey); ok {
		e.metrics.DecisionLatency(ctx, time.Since(req.CreatedAt).Seconds())
	}

	compensable, err := e.payout.Compensable(d.Status)
	if err != nil {
		e.log.Error("payout policy evaluation failed",
			"flight", d.FlightKey.String(), "error", err)
		return
	}
	if !compensable {
		e.log.Info("status decided, no payout",
			"flight", d.FlightKey.String(), "status", string(d.Status))
		return
	}

	credited, totalMinor := e.book.CreditAll(d.FlightKey)
	e.metrics.PoliciesCredited(ctx, credited, totalMinor)
	e.appendAudit(audit.EntryPoliciesCredited, d.FlightKey.String(), map[string]any{
		"count":       credited,
		"total_minor": totalMinor,
	})
	e.snapshotPolicies(d.FlightKey)
}

func (e *Engine) gate() error {
	if !e.gov.IsOperational() {
		return governance.ErrNotOperational
	}
	return nil
}

func (e *Engine) appendAudit(entryType audit.EntryType, subject string, payload map[string]any) {
	if _, err := e.auditLog.Append(entryType, subject, payload); err != nil {
		e.log.Error("audit append failed", "entry_type", string(entryType), "error", err)
	}
}

func (e *Engine) snapshotPolicies(key flight.Key) {
	if e.snapshots == nil {
		return
	}
	ctx := context.Background()
	for _, p := range e.book.Policies(key) {
		if err := e.snapshots.SavePolicy(ctx, p); err != nil {
			e.log.Error("policy snapshot failed", "flight", key.String(), "error", err)
			return
		}
	}
}

func (e *Engine) snapshotAirlines() {
	if e.snapshots == nil {
		return
	}
	ctx := context.Background()
	for _, a := range e.gov.Registered() {
		if err := e.snapshots.SaveAirline(ctx, a); err != nil {
			e.log.Error("airline snapshot failed", "airline", a.Address, "error", err)
			return
		}
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, aggregate.ErrStaleRequest):
		return "stale_request"
	case errors.Is(err, aggregate.ErrDuplicateResponse):
		return "duplicate_response"
	case errors.Is(err, aggregate.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, aggregate.ErrInvalidStatus):
		return "invalid_status"
	default:
		return "other"
	}
}
