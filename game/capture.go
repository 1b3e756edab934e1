package game

import (
	"fmt"

	"triple-triad-server/matcherrors"
)

// Resolve flips the opponent cards captured by the placement at c and returns
// their coordinates in Up, Right, Down, Left order.
//
// A neighbour is captured when the placed card's value facing it is strictly
// greater than the neighbour's value facing back. Ties never capture and
// captured cards do not trigger further captures. Resolve must be called
// exactly once, right after Place; any other call fails with
// ErrInvalidPlacement and leaves the board untouched.
func Resolve(b *Board, catalog *Catalog, c Coord) ([]Coord, error) {
	if !b.pending || b.last != c {
		return nil, fmt.Errorf("resolve (%d,%d): %w", c.X, c.Y, matcherrors.ErrInvalidPlacement)
	}
	placed, err := b.CellAt(c)
	if err != nil {
		return nil, err
	}
	if placed == nil {
		return nil, fmt.Errorf("resolve (%d,%d): %w", c.X, c.Y, matcherrors.ErrInvalidPlacement)
	}
	attacker, err := catalog.Lookup(placed.CardID)
	if err != nil {
		return nil, err
	}

	// Look everything up before flipping so a catalog miss cannot leave the
	// board half-resolved.
	neighbors := b.Neighbors(c)
	var captured []Coord
	for _, d := range Directions {
		n, ok := neighbors[d]
		if !ok {
			continue
		}
		target := b.cells[n.Index()]
		if target == nil || target.Owner == placed.Owner {
			continue
		}
		defender, err := catalog.Lookup(target.CardID)
		if err != nil {
			return nil, err
		}
		if attacker.Value(d) > defender.Value(d.Opposite()) {
			captured = append(captured, n)
		}
	}

	for _, n := range captured {
		b.cells[n.Index()].Owner = placed.Owner
	}
	b.pending = false
	return captured, nil
}
