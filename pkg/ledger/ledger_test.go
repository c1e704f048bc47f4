package ledger

import (
	"errors"
	"testing"
)

func TestCreditDebitBalance(t *testing.T) {
	l := NewMemLedger()
	if err := l.Credit("ins1", 1500); err != nil {
		t.Fatal(err)
	}
	if got := l.Balance("ins1"); got != 1500 {
		t.Fatalf("balance %d, want 1500", got)
	}
	if err := l.Debit("ins1", 500); err != nil {
		t.Fatal(err)
	}
	if got := l.Balance("ins1"); got != 1000 {
		t.Fatalf("balance %d, want 1000", got)
	}
}

func TestDebitRefusesOverdraft(t *testing.T) {
	l := NewMemLedger()
	if err := l.Debit("ins1", 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestTransferRecorded(t *testing.T) {
	l := NewMemLedger()
	if err := l.Transfer("ins1", 1500); err != nil {
		t.Fatal(err)
	}
	if got := l.Transferred("ins1"); got != 1500 {
		t.Fatalf("transferred %d, want 1500", got)
	}
}

func TestFailingLedger(t *testing.T) {
	f := &FailingLedger{Ledger: NewMemLedger()}
	if err := f.Transfer("ins1", 1); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
}
