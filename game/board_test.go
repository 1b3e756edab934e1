package game

import (
	"errors"
	"testing"

	"triple-triad-server/matcherrors"
)

func TestNewBoardIsEmpty(t *testing.T) {
	b := NewBoard()
	if b.Occupied() != 0 {
		t.Fatalf("expected empty board, got %d occupied", b.Occupied())
	}
	for i := 0; i < CellCount; i++ {
		c, _ := CoordFromIndex(i)
		p, err := b.CellAt(c)
		if err != nil {
			t.Fatalf("CellAt(%v): %v", c, err)
		}
		if p != nil {
			t.Errorf("expected cell %v empty, got %+v", c, p)
		}
	}
}

func TestCoordIndexRoundTrip(t *testing.T) {
	for i := 0; i < CellCount; i++ {
		c, err := CoordFromIndex(i)
		if err != nil {
			t.Fatalf("CoordFromIndex(%d): %v", i, err)
		}
		if c.Index() != i {
			t.Errorf("index %d -> %v -> %d", i, c, c.Index())
		}
	}
	if c, _ := CoordFromIndex(5); c != (Coord{X: 2, Y: 1}) {
		t.Errorf("expected index 5 to be (2,1), got %v", c)
	}
	for _, i := range []int{-1, CellCount} {
		if _, err := CoordFromIndex(i); !errors.Is(err, matcherrors.ErrOutOfRange) {
			t.Errorf("CoordFromIndex(%d): expected ErrOutOfRange, got %v", i, err)
		}
	}
}

func TestCellAtOutOfRange(t *testing.T) {
	b := NewBoard()
	for _, c := range []Coord{{-1, 0}, {0, -1}, {3, 0}, {0, 3}} {
		if _, err := b.CellAt(c); !errors.Is(err, matcherrors.ErrOutOfRange) {
			t.Errorf("CellAt(%v): expected ErrOutOfRange, got %v", c, err)
		}
	}
}

func TestPlaceOccupiesOnce(t *testing.T) {
	b := NewBoard()
	c := Coord{X: 1, Y: 2}
	if err := b.Place(c, Placement{CardID: 3, Owner: "alice", OriginalOwner: "alice"}); err != nil {
		t.Fatalf("Place: %v", err)
	}
	p, _ := b.CellAt(c)
	if p == nil || p.CardID != 3 || p.Coord != c {
		t.Fatalf("expected card 3 at %v, got %+v", c, p)
	}

	err := b.Place(c, Placement{CardID: 4, Owner: "bob", OriginalOwner: "bob"})
	if !errors.Is(err, matcherrors.ErrCellOccupied) {
		t.Fatalf("expected ErrCellOccupied, got %v", err)
	}
	if p, _ := b.CellAt(c); p.CardID != 3 {
		t.Errorf("occupied cell changed to card %d", p.CardID)
	}
	if err := b.Place(Coord{X: 3, Y: 3}, Placement{CardID: 1}); !errors.Is(err, matcherrors.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestNeighbors(t *testing.T) {
	b := NewBoard()

	corner := b.Neighbors(Coord{X: 0, Y: 0})
	if len(corner) != 2 {
		t.Fatalf("expected corner to have 2 neighbours, got %v", corner)
	}
	if corner[Right] != (Coord{X: 1, Y: 0}) || corner[Down] != (Coord{X: 0, Y: 1}) {
		t.Errorf("unexpected corner neighbours %v", corner)
	}

	if n := b.Neighbors(Coord{X: 1, Y: 0}); len(n) != 3 {
		t.Errorf("expected edge to have 3 neighbours, got %v", n)
	}

	center := b.Neighbors(Coord{X: 1, Y: 1})
	want := map[Direction]Coord{Up: {1, 0}, Right: {2, 1}, Down: {1, 2}, Left: {0, 1}}
	if len(center) != 4 {
		t.Fatalf("expected centre to have 4 neighbours, got %v", center)
	}
	for d, c := range want {
		if center[d] != c {
			t.Errorf("centre %s: expected %v, got %v", d, c, center[d])
		}
	}
}

func TestDirectionOpposite(t *testing.T) {
	pairs := map[Direction]Direction{Up: Down, Down: Up, Left: Right, Right: Left}
	for d, want := range pairs {
		if got := d.Opposite(); got != want {
			t.Errorf("%s.Opposite() = %s, want %s", d, got, want)
		}
	}
}

func TestOwnedByAndFull(t *testing.T) {
	b := NewBoard()
	for i := 0; i < CellCount; i++ {
		c, _ := CoordFromIndex(i)
		owner := "alice"
		if i%2 == 1 {
			owner = "bob"
		}
		if err := b.Place(c, Placement{CardID: i + 1, Owner: owner, OriginalOwner: owner}); err != nil {
			t.Fatalf("Place(%v): %v", c, err)
		}
	}
	if !b.Full() {
		t.Error("expected board to be full")
	}
	if b.OwnedBy("alice") != 5 || b.OwnedBy("bob") != 4 {
		t.Errorf("expected 5/4, got %d/%d", b.OwnedBy("alice"), b.OwnedBy("bob"))
	}
	if got := b.Placements(); len(got) != CellCount || got[4].Coord != (Coord{X: 1, Y: 1}) {
		t.Errorf("unexpected placements order: %+v", got)
	}
}
