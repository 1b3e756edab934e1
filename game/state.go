package game

import "time"

// State is a self-contained copy of a match. It is what the registry
// publishes to readers and what storage persists.
type State struct {
	ID           string
	Player1ID    string
	Player2ID    string // empty while waiting
	Status       Status
	CurrentTurn  string // empty while waiting
	Player1Score int
	Player2Score int
	WinnerID     string // empty until completed, and on a draw
	CreatedAt    time.Time
	CompletedAt  time.Time
	Placements   []Placement
	Hands        map[string][]int
}

// MatchView is the client-facing representation of a match.
type MatchView struct {
	ID                string     `json:"id"`
	Player1ID         string     `json:"player1Id"`
	Player2ID         *string    `json:"player2Id"`
	CurrentPlayerTurn string     `json:"currentPlayerTurn"`
	Status            string     `json:"status"`
	Player1Score      int        `json:"player1Score"`
	Player2Score      int        `json:"player2Score"`
	WinnerID          *string    `json:"winnerId"`
	CreatedAt         time.Time  `json:"createdAt"`
	CompletedAt       *time.Time `json:"completedAt"`
}

// PlacementView is a placement plus the card it holds.
type PlacementView struct {
	Placement
	Card Card `json:"card"`
}

// BuildMatchView constructs the client-facing match.
func BuildMatchView(s State) MatchView {
	v := MatchView{
		ID:                s.ID,
		Player1ID:         s.Player1ID,
		Player2ID:         optional(s.Player2ID),
		CurrentPlayerTurn: s.CurrentTurn,
		Status:            s.Status.String(),
		Player1Score:      s.Player1Score,
		Player2Score:      s.Player2Score,
		WinnerID:          optional(s.WinnerID),
		CreatedAt:         s.CreatedAt,
	}
	if !s.CompletedAt.IsZero() {
		t := s.CompletedAt
		v.CompletedAt = &t
	}
	return v
}

// BuildPlacementViews attaches catalog cards to the state's placements.
// Placements whose card is missing from the catalog are returned without one.
func BuildPlacementViews(s State, catalog *Catalog) []PlacementView {
	views := make([]PlacementView, 0, len(s.Placements))
	for _, p := range s.Placements {
		// Play and Restore only accept catalog cards, so a miss means the
		// caller passed a different catalog; the zero Card marks it.
		card, _ := catalog.Lookup(p.CardID)
		views = append(views, PlacementView{Placement: p, Card: card})
	}
	return views
}
