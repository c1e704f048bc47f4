// Package insurance owns policies and insuree balances. Crediting is
// triggered by a decided "airline fault" status and is idempotent per
// policy; withdrawal is the only operation with a rollback path.
package insurance

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Mindburn-Labs/surety/pkg/flight"
	"github.com/Mindburn-Labs/surety/pkg/ledger"
)

var (
	ErrAlreadyInsured  = errors.New("policy already exists for this insuree and flight")
	ErrInvalidPremium  = errors.New("premium must be positive")
	ErrPremiumTooLarge = errors.New("premium exceeds the configured cap")
	ErrNoFunds         = errors.New("insuree has no credited funds")
)

// Default payout multiplier: credit = premium * 3 / 2.
const (
	DefaultMultiplierNum = 3
	DefaultMultiplierDen = 2
)

// DefaultPremiumCapMinor caps a single premium (1 ether-equivalent in minor
// units of the deployment currency).
const DefaultPremiumCapMinor = 100_000

// Policy is one insuree's cover on one flight instance.
type Policy struct {
	Insuree      string     `json:"insuree"`
	FlightKey    flight.Key `json:"flight_key"`
	PremiumMinor int64      `json:"premium_minor"`
	Credited     bool       `json:"credited"`
}

// Ledger records insurance purchases and settles them against the external
// value capability. One mutex covers policies and balances so crediting and
// withdrawal interleavings are serializable.
type Ledger struct {
	mu       sync.Mutex
	policies map[string]map[string]*Policy // flight key -> insuree -> policy
	balances map[string]int64
	payer    ledger.Ledger
	capMinor int64
	num, den int64
	log      *slog.Logger
}

// New creates an insurance ledger paying premium*num/den on credit, with
// premiums capped at capMinor.
func New(payer ledger.Ledger, capMinor, num, den int64, logger *slog.Logger) (*Ledger, error) {
	if den == 0 {
		return nil, fmt.Errorf("multiplier denominator must be nonzero")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		policies: make(map[string]map[string]*Policy),
		balances: make(map[string]int64),
		payer:    payer,
		capMinor: capMinor,
		num:      num,
		den:      den,
		log:      logger.With("component", "insurance"),
	}, nil
}

// Buy records a policy for (insuree, flightKey). A second policy on the same
// pair is rejected; the existing one is untouched. Premiums are strictly
// positive: a zero or negative premium would flow through CreditAll as a
// negative credit and shrink the insuree's balance.
func (l *Ledger) Buy(insuree string, key flight.Key, premiumMinor int64) error {
	if premiumMinor <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPremium, premiumMinor)
	}
	if premiumMinor > l.capMinor {
		return fmt.Errorf("%w: %d > %d", ErrPremiumTooLarge, premiumMinor, l.capMinor)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	byInsuree, ok := l.policies[key.String()]
	if !ok {
		byInsuree = make(map[string]*Policy)
		l.policies[key.String()] = byInsuree
	}
	if _, exists := byInsuree[insuree]; exists {
		return fmt.Errorf("%w: %s on %s", ErrAlreadyInsured, insuree, key.String())
	}
	byInsuree[insuree] = &Policy{
		Insuree:      insuree,
		FlightKey:    key,
		PremiumMinor: premiumMinor,
	}
	l.log.Info("policy bought",
		"insuree", insuree, "flight", key.String(), "premium_minor", premiumMinor)
	return nil
}

// CreditAll credits every uncredited policy on the flight key at the payout
// multiplier. Already-credited policies are skipped, so duplicate decision
// notifications cannot double-pay. Returns the number of policies credited
// and the total amount.
func (l *Ledger) CreditAll(key flight.Key) (credited int, totalMinor int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range l.policies[key.String()] {
		if p.Credited {
			continue
		}
		p.Credited = true
		amount := p.PremiumMinor * l.num / l.den
		l.balances[p.Insuree] += amount
		credited++
		totalMinor += amount
	}
	if credited > 0 {
		l.log.Info("policies credited",
			"flight", key.String(), "count", credited, "total_minor", totalMinor)
	}
	return credited, totalMinor
}

// Withdraw zeroes the insuree's balance and transfers it out through the
// external ledger. If the transfer fails the balance is restored; no funds
// are lost. The mutex is held across the transfer so the zero-and-pay pair
// is atomic with respect to concurrent credits.
func (l *Ledger) Withdraw(insuree string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	amount := l.balances[insuree]
	if amount == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoFunds, insuree)
	}
	l.balances[insuree] = 0
	if err := l.payer.Transfer(insuree, amount); err != nil {
		l.balances[insuree] = amount
		return 0, fmt.Errorf("withdraw %s: %w", insuree, err)
	}
	l.log.Info("withdrawal paid", "insuree", insuree, "amount_minor", amount)
	return amount, nil
}

// Balance returns the insuree's credited, unwithdrawn funds.
func (l *Ledger) Balance(insuree string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[insuree]
}

// Policies returns copies of every policy on the flight key.
func (l *Ledger) Policies(key flight.Key) []Policy {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Policy, 0, len(l.policies[key.String()]))
	for _, p := range l.policies[key.String()] {
		out = append(out, *p)
	}
	return out
}
