// Package governance tracks the airline set and the global operational flag.
// Early airlines register unilaterally; once the set reaches the bootstrap
// threshold, registration and the operational toggle both require a majority
// of funded airlines.
package governance

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrCallerNotFunded     = errors.New("caller is not a funded airline")
	ErrDuplicateVote       = errors.New("caller already voted for this candidate")
	ErrAlreadyRegistered   = errors.New("airline already registered")
	ErrUnknownAirline      = errors.New("airline not registered")
	ErrInsufficientFunding = errors.New("funding amount below threshold")
	ErrNotAuthorized       = errors.New("caller may not change operational status")
	ErrNotOperational      = errors.New("system is not operational")
	ErrGenesisTaken        = errors.New("founding airline already present")
)

// DefaultBootstrapThreshold is the airline count up to which registration is
// unilateral and the operational flag is owner-controlled.
const DefaultBootstrapThreshold = 4

// Airline is one participant. Funded is monotonic true-only.
type Airline struct {
	Address    string `json:"address"`
	Registered bool   `json:"registered"`
	Funded     bool   `json:"funded"`
}

// Governance owns the airline records, registration votes, and the
// operational flag. All vote check-and-commits happen under one mutex.
type Governance struct {
	mu           sync.Mutex
	owner        string
	airlines     map[string]*Airline
	regVotes     map[string]map[string]bool // candidate -> voters
	opVotes      map[bool]map[string]bool   // target mode -> voters
	operational  bool
	fundingMinor int64
	bootstrap    int
	log          *slog.Logger
}

// New creates a governance tracker. owner is the deployment owner allowed to
// toggle the operational flag during the bootstrap phase.
func New(owner string, fundingMinor int64, logger *slog.Logger) *Governance {
	if logger == nil {
		logger = slog.Default()
	}
	return &Governance{
		owner:        owner,
		airlines:     make(map[string]*Airline),
		regVotes:     make(map[string]map[string]bool),
		opVotes:      make(map[bool]map[string]bool),
		operational:  true,
		fundingMinor: fundingMinor,
		bootstrap:    DefaultBootstrapThreshold,
		log:          logger.With("component", "governance"),
	}
}

// RegisterFounding seats the first airline. Valid only while no airline
// exists; later airlines go through RegisterAirline.
func (g *Governance) RegisterFounding(address string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.airlines) != 0 {
		return ErrGenesisTaken
	}
	g.airlines[address] = &Airline{Address: address, Registered: true}
	g.log.Info("founding airline registered", "airline", address)
	return nil
}

// RegisterAirline registers candidate on behalf of caller. During the
// bootstrap phase registration is immediate; afterwards it commits once
// ceil(funded/2) distinct funded airlines have called for the same
// candidate. Returns whether the candidate is now registered.
func (g *Governance) RegisterAirline(caller, candidate string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.fundedLocked(caller) {
		return false, fmt.Errorf("%w: %s", ErrCallerNotFunded, caller)
	}
	if a, ok := g.airlines[candidate]; ok && a.Registered {
		return false, fmt.Errorf("%w: %s", ErrAlreadyRegistered, candidate)
	}

	if g.registeredCountLocked() < g.bootstrap {
		g.airlines[candidate] = &Airline{Address: candidate, Registered: true}
		g.log.Info("airline registered", "airline", candidate, "by", caller)
		return true, nil
	}

	voters, ok := g.regVotes[candidate]
	if !ok {
		voters = make(map[string]bool)
		g.regVotes[candidate] = voters
	}
	if voters[caller] {
		return false, fmt.Errorf("%w: %s for %s", ErrDuplicateVote, caller, candidate)
	}
	voters[caller] = true

	needed := majorityOf(g.fundedCountLocked())
	if len(voters) < needed {
		g.log.Info("registration vote recorded",
			"airline", candidate, "votes", len(voters), "needed", needed)
		return false, nil
	}

	g.airlines[candidate] = &Airline{Address: candidate, Registered: true}
	delete(g.regVotes, candidate)
	g.log.Info("airline registered by vote", "airline", candidate, "votes", len(voters))
	return true, nil
}

// FundAirline records a stake deposit for a registered airline. Funding is
// monotonic and idempotent.
func (g *Governance) FundAirline(address string, amountMinor int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.airlines[address]
	if !ok || !a.Registered {
		return fmt.Errorf("%w: %s", ErrUnknownAirline, address)
	}
	if amountMinor < g.fundingMinor {
		return fmt.Errorf("%w: got %d, need %d", ErrInsufficientFunding, amountMinor, g.fundingMinor)
	}
	if !a.Funded {
		a.Funded = true
		g.log.Info("airline funded", "airline", address)
	}
	return nil
}

// SetOperational requests a change of the global operational flag. During
// the bootstrap phase only the owner may toggle it; afterwards the same
// majority rule as registration applies, voted by funded airlines. Returns
// whether the flag now equals mode.
func (g *Governance) SetOperational(caller string, mode bool) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.operational == mode {
		return true, nil
	}

	if g.registeredCountLocked() <= g.bootstrap {
		if caller != g.owner {
			return false, fmt.Errorf("%w: %s", ErrNotAuthorized, caller)
		}
		g.setOperationalLocked(mode)
		return true, nil
	}

	if !g.fundedLocked(caller) {
		return false, fmt.Errorf("%w: %s", ErrCallerNotFunded, caller)
	}
	voters, ok := g.opVotes[mode]
	if !ok {
		voters = make(map[string]bool)
		g.opVotes[mode] = voters
	}
	if voters[caller] {
		return false, fmt.Errorf("%w: %s for mode %t", ErrDuplicateVote, caller, mode)
	}
	voters[caller] = true

	needed := majorityOf(g.fundedCountLocked())
	if len(voters) < needed {
		return false, nil
	}
	g.setOperationalLocked(mode)
	return true, nil
}

// IsOperational reports the global flag. Mutating operations across the
// system check it first and reject with ErrNotOperational when false.
func (g *Governance) IsOperational() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.operational
}

// IsFunded reports whether address is a registered, funded airline.
func (g *Governance) IsFunded(address string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fundedLocked(address)
}

// IsRegistered reports whether address is a registered airline.
func (g *Governance) IsRegistered(address string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.airlines[address]
	return ok && a.Registered
}

// Registered returns a copy of every airline record.
func (g *Governance) Registered() []Airline {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Airline, 0, len(g.airlines))
	for _, a := range g.airlines {
		out = append(out, *a)
	}
	return out
}

func (g *Governance) setOperationalLocked(mode bool) {
	g.operational = mode
	// Stale votes for either direction are void once the flag moves.
	g.opVotes = make(map[bool]map[string]bool)
	g.log.Info("operational status changed", "operational", mode)
}

func (g *Governance) fundedLocked(address string) bool {
	a, ok := g.airlines[address]
	return ok && a.Registered && a.Funded
}

func (g *Governance) fundedCountLocked() int {
	n := 0
	for _, a := range g.airlines {
		if a.Registered && a.Funded {
			n++
		}
	}
	return n
}

func (g *Governance) registeredCountLocked() int {
	n := 0
	for _, a := range g.airlines {
		if a.Registered {
			n++
		}
	}
	return n
}

// majorityOf returns ceil(n/2), the concurring votes a commit needs.
func majorityOf(n int) int {
	return (n + 1) / 2
}
