package audit

import (
	"errors"
	"testing"
	"time"
)

func TestAppendAndGet(t *testing.T) {
	l := NewLog()
	entry, err := l.Append(EntryStatusDecided, "AL1|ND1309|1700000000", map[string]any{
		"status": "LATE_AIRLINE",
	})
	if err != nil {
		t.Fatal(err)
	}
	if entry.Sequence != 1 {
		t.Fatalf("sequence %d, want 1", entry.Sequence)
	}

	got, err := l.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if got.EntryType != EntryStatusDecided {
		t.Fatalf("entry type %s", got.EntryType)
	}
	if _, err := l.Get(2); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestChainVerifies(t *testing.T) {
	l := NewLog()
	for i := 0; i < 5; i++ {
		if _, err := l.Append(EntryRequestOpened, "f", map[string]any{"i": i}); err != nil {
			t.Fatal(err)
		}
	}
	ok, reason := l.Verify()
	if !ok {
		t.Fatalf("expected valid chain: %s", reason)
	}
	if l.Head() == "genesis" {
		t.Fatal("head should have advanced")
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	l := NewLog()
	l.Append(EntryWithdrawal, "ins1", map[string]any{"amount": 1500})
	l.Append(EntryWithdrawal, "ins2", map[string]any{"amount": 600})

	l.entries[0].Subject = "ins9"
	if ok, _ := l.Verify(); ok {
		t.Fatal("tampered subject must fail verification")
	}
}

func TestVerifyDetectsTimestampRewrite(t *testing.T) {
	l := NewLog()
	l.Append(EntryWithdrawal, "ins1", map[string]any{"amount": 1500})

	l.entries[0].Timestamp = l.entries[0].Timestamp.Add(time.Hour)
	if ok, _ := l.Verify(); ok {
		t.Fatal("rewritten timestamp must fail verification")
	}
}

func TestCanonicalPayloadHashing(t *testing.T) {
	// Key order must not affect the payload bytes, hence the chain.
	l1 := NewLog()
	l2 := NewLog()
	e1, err := l1.Append(EntryPoliciesCredited, "f", map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	e2, err := l2.Append(EntryPoliciesCredited, "f", map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if string(e1.Payload) != string(e2.Payload) {
		t.Fatalf("canonical payloads differ: %s vs %s", e1.Payload, e2.Payload)
	}
}
