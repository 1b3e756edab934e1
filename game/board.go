package game

import (
	"fmt"

	"triple-triad-server/matcherrors"
)

// BoardSize is the width and height of the board.
const BoardSize = 3

// CellCount is the number of cells on the board.
const CellCount = BoardSize * BoardSize

// Coord is a board cell position. It is the only representation used inside
// the game package; linear indices exist only at the boundary.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Valid reports whether both components are within [0, BoardSize).
func (c Coord) Valid() bool {
	return c.X >= 0 && c.X < BoardSize && c.Y >= 0 && c.Y < BoardSize
}

// Index returns the linear cell index y*3+x.
func (c Coord) Index() int {
	return c.Y*BoardSize + c.X
}

// CoordFromIndex converts a linear cell index to a Coord.
func CoordFromIndex(i int) (Coord, error) {
	if i < 0 || i >= CellCount {
		return Coord{}, fmt.Errorf("index %d: %w", i, matcherrors.ErrOutOfRange)
	}
	return Coord{X: i % BoardSize, Y: i / BoardSize}, nil
}

// Direction points from a cell towards one of its orthogonal neighbours.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

// Directions lists every direction in resolution order.
var Directions = [4]Direction{Up, Right, Down, Left}

// String returns the name of the direction.
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	default:
		return "unknown"
	}
}

// Opposite returns the direction facing back towards the origin.
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

// step returns the coordinate one cell away from c in direction d (may be off the board).
func (d Direction) step(c Coord) Coord {
	switch d {
	case Up:
		return Coord{X: c.X, Y: c.Y - 1}
	case Right:
		return Coord{X: c.X + 1, Y: c.Y}
	case Down:
		return Coord{X: c.X, Y: c.Y + 1}
	default:
		return Coord{X: c.X - 1, Y: c.Y}
	}
}

// Placement is a card fixed to a board cell. Owner is the only field that
// changes after placement, and only through Resolve.
type Placement struct {
	CardID        int    `json:"cardId"`
	Owner         string `json:"owner"`
	OriginalOwner string `json:"playerId"`
	Coord
}

// Board is the 3x3 grid. A cell moves from empty to occupied exactly once.
type Board struct {
	cells [CellCount]*Placement

	// last is the most recently placed cell; pending is true until it has
	// been resolved.
	last    Coord
	pending bool
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{}
}

// CellAt returns the placement at c, or nil if the cell is empty.
func (b *Board) CellAt(c Coord) (*Placement, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("cell (%d,%d): %w", c.X, c.Y, matcherrors.ErrOutOfRange)
	}
	return b.cells[c.Index()], nil
}

// Place records p at c. The placement's own Coord is overwritten with c.
func (b *Board) Place(c Coord, p Placement) error {
	if !c.Valid() {
		return fmt.Errorf("cell (%d,%d): %w", c.X, c.Y, matcherrors.ErrOutOfRange)
	}
	if b.cells[c.Index()] != nil {
		return fmt.Errorf("cell (%d,%d): %w", c.X, c.Y, matcherrors.ErrCellOccupied)
	}
	p.Coord = c
	b.cells[c.Index()] = &p
	b.last = c
	b.pending = true
	return nil
}

// Neighbors returns the on-board cells orthogonally adjacent to c.
// Corners have two neighbours, edges three, the centre four.
func (b *Board) Neighbors(c Coord) map[Direction]Coord {
	out := make(map[Direction]Coord, 4)
	if !c.Valid() {
		return out
	}
	for _, d := range Directions {
		if n := d.step(c); n.Valid() {
			out[d] = n
		}
	}
	return out
}

// Occupied returns the number of occupied cells.
func (b *Board) Occupied() int {
	n := 0
	for _, p := range b.cells {
		if p != nil {
			n++
		}
	}
	return n
}

// Full reports whether every cell is occupied.
func (b *Board) Full() bool {
	return b.Occupied() == CellCount
}

// OwnedBy returns the number of cells currently controlled by player.
func (b *Board) OwnedBy(player string) int {
	n := 0
	for _, p := range b.cells {
		if p != nil && p.Owner == player {
			n++
		}
	}
	return n
}

// Placements returns copies of every placement in board index order.
func (b *Board) Placements() []Placement {
	out := make([]Placement, 0, CellCount)
	for _, p := range b.cells {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}
