package game

import (
	"fmt"
	"sort"

	"triple-triad-server/matcherrors"
)

// Card strength bounds.
const (
	MinCardValue = 1
	MaxCardValue = 10
)

// Card is an immutable catalog entry. JSON names follow the web client.
type Card struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	Up      int    `json:"topValue"`
	Right   int    `json:"rightValue"`
	Down    int    `json:"bottomValue"`
	Left    int    `json:"leftValue"`
	Element string `json:"element,omitempty"`
	Level   int    `json:"level,omitempty"`
}

// Value returns the card's strength pointing in direction d.
func (c Card) Value(d Direction) int {
	switch d {
	case Up:
		return c.Up
	case Right:
		return c.Right
	case Down:
		return c.Down
	case Left:
		return c.Left
	default:
		return 0
	}
}

// Catalog is the read-only registry of playable cards. It is never mutated
// after NewCatalog returns, so it is safe to share between goroutines.
type Catalog struct {
	cards map[int]Card
	ids   []int // ascending
}

// NewCatalog validates cards and builds a catalog from them.
func NewCatalog(cards []Card) (*Catalog, error) {
	c := &Catalog{cards: make(map[int]Card, len(cards))}
	for _, card := range cards {
		if card.ID <= 0 {
			return nil, fmt.Errorf("card %q: id must be positive, got %d", card.Name, card.ID)
		}
		if _, dup := c.cards[card.ID]; dup {
			return nil, fmt.Errorf("card %q: duplicate id %d", card.Name, card.ID)
		}
		for _, d := range Directions {
			if v := card.Value(d); v < MinCardValue || v > MaxCardValue {
				return nil, fmt.Errorf("card %d %q: %s value %d out of range [%d,%d]",
					card.ID, card.Name, d, v, MinCardValue, MaxCardValue)
			}
		}
		c.cards[card.ID] = card
		c.ids = append(c.ids, card.ID)
	}
	sort.Ints(c.ids)
	return c, nil
}

// Lookup returns the card with the given id, or ErrCardNotFound.
func (c *Catalog) Lookup(id int) (Card, error) {
	card, ok := c.cards[id]
	if !ok {
		return Card{}, fmt.Errorf("card %d: %w", id, matcherrors.ErrCardNotFound)
	}
	return card, nil
}

// All returns every card ordered by id.
func (c *Catalog) All() []Card {
	out := make([]Card, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.cards[id])
	}
	return out
}

// IDs returns every card id in ascending order.
func (c *Catalog) IDs() []int {
	return append([]int(nil), c.ids...)
}

// Len returns the number of cards in the catalog.
func (c *Catalog) Len() int { return len(c.ids) }

// DefaultCatalog returns the built-in card set served by the game API.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultCards)
	if err != nil {
		panic("default catalog: " + err.Error())
	}
	return c
}

var defaultCards = []Card{
	{ID: 1, Name: "Squall", Image: "squall.png", Up: 10, Right: 4, Down: 6, Left: 9, Level: 10},
	{ID: 2, Name: "Odin", Image: "odin.png", Up: 8, Right: 5, Down: 10, Left: 8, Level: 8},
	{ID: 3, Name: "Alexander", Image: "alexander.png", Up: 9, Right: 10, Down: 4, Left: 2, Element: "holy", Level: 8},
	{ID: 4, Name: "Angelo", Image: "angelo.png", Up: 9, Right: 6, Down: 7, Left: 3, Level: 7},
	{ID: 5, Name: "Edea", Image: "edea.png", Up: 10, Right: 10, Down: 3, Left: 3, Level: 10},
	{ID: 6, Name: "Ifrit", Image: "ifrit.png", Up: 9, Right: 8, Down: 6, Left: 2, Element: "fire", Level: 8},
	{ID: 7, Name: "Jumbo Cactuar", Image: "jumbocactuar.png", Up: 8, Right: 8, Down: 4, Left: 4, Level: 7},
	{ID: 8, Name: "Laguna", Image: "laguna.png", Up: 5, Right: 10, Down: 3, Left: 9, Level: 10},
	{ID: 9, Name: "Geezard", Image: "geezard.png", Up: 1, Right: 4, Down: 1, Left: 5, Level: 1},
	{ID: 10, Name: "Funguar", Image: "funguar.png", Up: 5, Right: 1, Down: 1, Left: 3, Level: 1},
	{ID: 11, Name: "Bite Bug", Image: "bitebug.png", Up: 1, Right: 3, Down: 3, Left: 5, Level: 1},
	{ID: 12, Name: "Red Bat", Image: "redbat.png", Up: 6, Right: 1, Down: 1, Left: 2, Level: 1},
	{ID: 13, Name: "Blobra", Image: "blobra.png", Up: 2, Right: 3, Down: 1, Left: 5, Level: 1},
	{ID: 14, Name: "Gayla", Image: "gayla.png", Up: 2, Right: 1, Down: 4, Left: 4, Element: "thunder", Level: 1},
	{ID: 15, Name: "Gesper", Image: "gesper.png", Up: 1, Right: 5, Down: 4, Left: 1, Level: 1},
	{ID: 16, Name: "Fastitocalon-F", Image: "fastitocalonf.png", Up: 3, Right: 5, Down: 2, Left: 1, Element: "earth", Level: 1},
	{ID: 17, Name: "Blood Soul", Image: "bloodsoul.png", Up: 2, Right: 1, Down: 6, Left: 1, Level: 1},
	{ID: 18, Name: "Caterchipillar", Image: "caterchipillar.png", Up: 4, Right: 2, Down: 4, Left: 3, Level: 1},
	{ID: 19, Name: "Cockatrice", Image: "cockatrice.png", Up: 2, Right: 1, Down: 2, Left: 6, Element: "thunder", Level: 1},
	{ID: 20, Name: "Grat", Image: "grat.png", Up: 7, Right: 1, Down: 3, Left: 1, Level: 2},
	{ID: 21, Name: "Buel", Image: "buel.png", Up: 6, Right: 2, Down: 2, Left: 3, Level: 2},
	{ID: 22, Name: "Mesmerize", Image: "mesmerize.png", Up: 5, Right: 3, Down: 3, Left: 4, Level: 2},
	{ID: 23, Name: "Glacial Eye", Image: "glacialeye.png", Up: 6, Right: 1, Down: 4, Left: 3, Element: "ice", Level: 2},
	{ID: 24, Name: "Belhelmel", Image: "belhelmel.png", Up: 3, Right: 4, Down: 5, Left: 3, Level: 2},
	{ID: 25, Name: "Thrustaevis", Image: "thrustaevis.png", Up: 5, Right: 3, Down: 2, Left: 5, Element: "wind", Level: 2},
}
