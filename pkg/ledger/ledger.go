// Package ledger defines the opaque value-transfer capability the insurance
// engine settles against. The engine never moves value itself; it credits,
// debits, and pays out through this interface.
package ledger

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrInsufficientBalance = errors.New("insufficient ledger balance")
	ErrTransferFailed      = errors.New("external transfer failed")
)

// Ledger is the external value capability. Amounts are int64 minor units.
type Ledger interface {
	// Credit adds amount to account.
	Credit(account string, amountMinor int64) error
	// Debit removes amount from account, failing with ErrInsufficientBalance
	// rather than going negative.
	Debit(account string, amountMinor int64) error
	// Balance returns the current balance of account.
	Balance(account string) int64
	// Transfer pays amount out of the system to account's holder. This is
	// the only boundary that can fail after the engine has mutated its own
	// state; callers must treat ErrTransferFailed as recoverable.
	Transfer(account string, amountMinor int64) error
}

// MemLedger is a mutex-guarded in-memory Ledger. Transfers are recorded so
// tests can assert on the payout stream.
type MemLedger struct {
	mu        sync.Mutex
	balances  map[string]int64
	transfers map[string]int64
}

// NewMemLedger creates an empty in-memory ledger.
func NewMemLedger() *MemLedger {
	return &MemLedger{
		balances:  make(map[string]int64),
		transfers: make(map[string]int64),
	}
}

func (l *MemLedger) Credit(account string, amountMinor int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amountMinor
	return nil
}

func (l *MemLedger) Debit(account string, amountMinor int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[account] < amountMinor {
		return fmt.Errorf("%w: %s has %d, needs %d",
			ErrInsufficientBalance, account, l.balances[account], amountMinor)
	}
	l.balances[account] -= amountMinor
	return nil
}

func (l *MemLedger) Balance(account string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

func (l *MemLedger) Transfer(account string, amountMinor int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transfers[account] += amountMinor
	return nil
}

// Transferred returns the total paid out to account so far.
func (l *MemLedger) Transferred(account string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfers[account]
}

// FailingLedger wraps a Ledger and fails every Transfer. Used to exercise
// the withdraw rollback path.
type FailingLedger struct {
	Ledger
}

func (f *FailingLedger) Transfer(account string, amountMinor int64) error {
	return fmt.Errorf("%w: %s", ErrTransferFailed, account)
}
