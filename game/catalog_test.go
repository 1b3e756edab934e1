package game

import (
	"errors"
	"testing"

	"triple-triad-server/matcherrors"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	if c.Len() < 20 {
		t.Fatalf("expected at least 20 cards, got %d", c.Len())
	}
	squall, err := c.Lookup(1)
	if err != nil {
		t.Fatalf("Lookup(1): %v", err)
	}
	if squall.Name != "Squall" {
		t.Errorf("expected Squall, got %q", squall.Name)
	}
	all := c.All()
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("All() not ordered by id at %d", i)
		}
	}
}

func TestLookupNotFound(t *testing.T) {
	_, err := DefaultCatalog().Lookup(9999)
	if !errors.Is(err, matcherrors.ErrCardNotFound) {
		t.Fatalf("expected ErrCardNotFound, got %v", err)
	}
	if !errors.Is(err, matcherrors.ErrNotFound) {
		t.Errorf("expected NotFound kind, got %v", err)
	}
}

func TestNewCatalogRejectsInvalidCards(t *testing.T) {
	tests := []struct {
		name  string
		cards []Card
	}{
		{"zero id", []Card{{ID: 0, Up: 1, Right: 1, Down: 1, Left: 1}}},
		{"duplicate id", []Card{{ID: 1, Up: 1, Right: 1, Down: 1, Left: 1}, {ID: 1, Up: 2, Right: 2, Down: 2, Left: 2}}},
		{"value too low", []Card{{ID: 1, Up: 0, Right: 1, Down: 1, Left: 1}}},
		{"value too high", []Card{{ID: 1, Up: 1, Right: 11, Down: 1, Left: 1}}},
	}
	for _, tt := range tests {
		if _, err := NewCatalog(tt.cards); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestCardValue(t *testing.T) {
	c := Card{Up: 1, Right: 2, Down: 3, Left: 4}
	want := map[Direction]int{Up: 1, Right: 2, Down: 3, Left: 4}
	for d, v := range want {
		if c.Value(d) != v {
			t.Errorf("Value(%s) = %d, want %d", d, c.Value(d), v)
		}
	}
}
