package sources

import "testing"

func TestDefaultContainsKnownCountries(t *testing.T) {
	c := Default()
	if c.Len() != 10 {
		t.Fatalf("default config has %d sources, want 10", c.Len())
	}
	for _, name := range []string{"Sri Lanka", "Thailand", "Brazil"} {
		if !c.Contains(name) {
			t.Fatalf("default config missing %q", name)
		}
	}
	if c.Contains("Atlantis") {
		t.Fatalf("unexpected source recognized")
	}
	if c.Contains("thailand") {
		t.Fatalf("matching should be case sensitive")
	}
}

func TestWithDoesNotMutateReceiver(t *testing.T) {
	base := Default()
	extended := base.With("Japan")

	if base.Contains("Japan") {
		t.Fatalf("With mutated the receiver")
	}
	if !extended.Contains("Japan") {
		t.Fatalf("extended config missing added source")
	}
	if extended.Len() != base.Len()+1 {
		t.Fatalf("extended Len = %d, want %d", extended.Len(), base.Len()+1)
	}
}

func TestWithDuplicateIsNoop(t *testing.T) {
	base := Default()
	extended := base.With("Thailand")
	if extended.Len() != base.Len() {
		t.Fatalf("adding existing source changed Len to %d", extended.Len())
	}
}

func TestListReturnsCopy(t *testing.T) {
	c := Default()
	list := c.List()
	list[0] = "Mordor"
	if c.List()[0] == "Mordor" {
		t.Fatalf("List exposed internal state")
	}
}

func TestNewDropsDuplicates(t *testing.T) {
	c := New("Thailand", "Vietnam", "Thailand")
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	list := c.List()
	if list[0] != "Thailand" || list[1] != "Vietnam" {
		t.Fatalf("order not preserved: %v", list)
	}
}
