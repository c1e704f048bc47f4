package oracle

import (
	"errors"
	"testing"
)

func TestRegisterAssignsDistinctLabels(t *testing.T) {
	r, err := NewRegistry(10, 100)
	if err != nil {
		t.Fatal(err)
	}
	labels, err := r.Register("o1", 100)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[int]bool{}
	for _, l := range labels {
		if l < 0 || l >= 10 {
			t.Fatalf("label %d out of range", l)
		}
		if seen[l] {
			t.Fatalf("duplicate label %d in triple %v", l, labels)
		}
		seen[l] = true
	}
}

func TestRegisterRejectsLowFee(t *testing.T) {
	r, _ := NewRegistry(10, 100)
	if _, err := r.Register("o1", 99); !errors.Is(err, ErrInsufficientFee) {
		t.Fatalf("expected ErrInsufficientFee, got %v", err)
	}
	if r.Count() != 0 {
		t.Fatal("rejected registration must not mutate the registry")
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	r, _ := NewRegistry(10, 100)
	if _, err := r.Register("o1", 100); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register("o1", 100); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestIndexesOfUnknown(t *testing.T) {
	r, _ := NewRegistry(10, 100)
	if _, err := r.IndexesOf("ghost"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestHasLabel(t *testing.T) {
	r, _ := NewRegistry(10, 0)
	labels, err := r.Register("o1", 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range labels {
		if !r.HasLabel("o1", l) {
			t.Fatalf("oracle should hold assigned label %d", l)
		}
	}
	held := map[int]bool{}
	for _, l := range labels {
		held[l] = true
	}
	for l := 0; l < 10; l++ {
		if !held[l] && r.HasLabel("o1", l) {
			t.Fatalf("oracle should not hold label %d", l)
		}
	}
	if r.HasLabel("ghost", labels[0]) {
		t.Fatal("unregistered oracle holds no labels")
	}
}

func TestNewRegistryTinyLabelSpace(t *testing.T) {
	if _, err := NewRegistry(2, 0); err == nil {
		t.Fatal("label space smaller than the triple must be rejected")
	}
}
