package flight

import "testing"

func TestKeyString(t *testing.T) {
	k := Key{Airline: "AL1", Flight: "ND1309", Timestamp: 1700000000}
	want := "AL1|ND1309|1700000000"
	if k.String() != want {
		t.Fatalf("expected %q, got %q", want, k.String())
	}
}

func TestKeyStringDistinguishesInstances(t *testing.T) {
	a := Key{Airline: "AL1", Flight: "ND1309", Timestamp: 1}
	b := Key{Airline: "AL1", Flight: "ND1309", Timestamp: 2}
	if a.String() == b.String() {
		t.Fatal("different timestamps must produce different keys")
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range Statuses {
		if !s.Valid() {
			t.Fatalf("status %s should be valid", s)
		}
	}
	if Status("DELAYED_MAYBE").Valid() {
		t.Fatal("unknown status should be invalid")
	}
}
