package game

import (
	"fmt"
	"slices"
	"time"

	"triple-triad-server/matcherrors"
)

// Status is the lifecycle state of a match.
type Status int

const (
	StatusWaiting Status = iota
	StatusActive
	StatusCompleted
)

// String returns the protocol string for a Status.
func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "waiting":
		return StatusWaiting, nil
	case "active":
		return StatusActive, nil
	case "completed":
		return StatusCompleted, nil
	default:
		return 0, fmt.Errorf("unknown match status %q", s)
	}
}

// PlayResult is the outcome of a successful PlayCard.
type PlayResult struct {
	Success        bool    `json:"success"`
	MatchID        string  `json:"matchId"`
	PlayerID       string  `json:"playerId"`
	Card           Card    `json:"card"`
	Coord          Coord   `json:"position"`
	Captured       []Coord `json:"capturedCells"`
	Player1Score   int     `json:"player1Score"`
	Player2Score   int     `json:"player2Score"`
	CurrentPlayer  string  `json:"currentPlayer"`
	IsGameComplete bool    `json:"isGameComplete"`
	WinnerID       *string `json:"winnerId"`
}

// Match is the state machine for one game: waiting -> active -> completed.
//
// A Match is not safe for concurrent use. matchmaking.Registry serialises
// every call for a given match id.
type Match struct {
	id      string
	catalog *Catalog
	dealer  *Dealer

	player1 string
	player2 string
	status  Status
	turn    string
	scores  [2]int // cells owned by player1 and player2
	winner  string

	createdAt   time.Time
	completedAt time.Time

	board *Board
	hands map[string][]int
}

// NewMatch creates a match for player1 and deals their hand. With an empty
// opponent the match waits for a second player; otherwise both hands are
// dealt and the match starts active with player1 to move.
func NewMatch(id, player1, opponent string, catalog *Catalog, dealer *Dealer, now time.Time) (*Match, error) {
	if player1 == "" {
		return nil, matcherrors.ErrInvalidPlayer
	}
	if opponent == player1 {
		return nil, fmt.Errorf("player %q: %w", opponent, matcherrors.ErrAlreadyInMatch)
	}
	m := &Match{
		id:        id,
		catalog:   catalog,
		dealer:    dealer,
		player1:   player1,
		status:    StatusWaiting,
		createdAt: now,
		board:     NewBoard(),
		hands:     make(map[string][]int, 2),
	}
	m.hands[player1] = dealer.Deal(id, player1)
	if opponent != "" {
		m.seat(opponent)
	}
	return m, nil
}

// Join seats player as player2, deals their hand and starts the match.
func (m *Match) Join(player string) error {
	if player == "" {
		return matcherrors.ErrInvalidPlayer
	}
	if m.player2 != "" {
		return fmt.Errorf("match %s: %w", m.id, matcherrors.ErrMatchFull)
	}
	if m.status != StatusWaiting {
		return fmt.Errorf("match %s is %s: %w", m.id, m.status, matcherrors.ErrMatchNotWaiting)
	}
	if player == m.player1 {
		return fmt.Errorf("player %q: %w", player, matcherrors.ErrAlreadyInMatch)
	}
	m.seat(player)
	return nil
}

func (m *Match) seat(player string) {
	m.player2 = player
	m.hands[player] = m.dealer.Deal(m.id, player)
	m.status = StatusActive
	m.turn = m.player1
}

// Play places cardID from player's hand at c.
//
// Validation runs in a fixed order and completes before anything changes, so
// a failed play leaves the match exactly as it was. A successful play then
// removes the card from the hand, places it, resolves captures, updates the
// scores, passes the turn and finally checks for completion.
func (m *Match) Play(player string, cardID int, c Coord, now time.Time) (PlayResult, error) {
	if m.status != StatusActive {
		return PlayResult{}, fmt.Errorf("match %s is %s: %w", m.id, m.status, matcherrors.ErrMatchNotActive)
	}
	if player != m.turn {
		return PlayResult{}, fmt.Errorf("player %q: %w", player, matcherrors.ErrNotYourTurn)
	}
	hand := m.hands[player]
	slot := slices.Index(hand, cardID)
	if slot < 0 {
		return PlayResult{}, fmt.Errorf("card %d: %w", cardID, matcherrors.ErrCardNotInHand)
	}
	cell, err := m.board.CellAt(c)
	if err != nil {
		return PlayResult{}, err
	}
	if cell != nil {
		return PlayResult{}, fmt.Errorf("cell (%d,%d): %w", c.X, c.Y, matcherrors.ErrCellOccupied)
	}
	card, err := m.catalog.Lookup(cardID)
	if err != nil {
		return PlayResult{}, err
	}

	// Everything below is checked above and cannot fail.
	m.hands[player] = slices.Delete(slices.Clone(hand), slot, slot+1)
	if err := m.board.Place(c, Placement{CardID: cardID, Owner: player, OriginalOwner: player}); err != nil {
		panic(fmt.Sprintf("match %s: place after validation: %v", m.id, err))
	}
	captured, err := Resolve(m.board, m.catalog, c)
	if err != nil {
		panic(fmt.Sprintf("match %s: resolve after validation: %v", m.id, err))
	}

	// A score is the number of cells the player owns, so the two always sum
	// to the occupied cells.
	m.scores[0] = m.board.OwnedBy(m.player1)
	m.scores[1] = m.board.OwnedBy(m.player2)
	m.turn = m.other(player)
	if m.board.Full() {
		m.status = StatusCompleted
		m.completedAt = now
		switch {
		case m.scores[0] > m.scores[1]:
			m.winner = m.player1
		case m.scores[1] > m.scores[0]:
			m.winner = m.player2
		}
	}

	if captured == nil {
		captured = []Coord{}
	}
	return PlayResult{
		Success:        true,
		MatchID:        m.id,
		PlayerID:       player,
		Card:           card,
		Coord:          c,
		Captured:       captured,
		Player1Score:   m.scores[0],
		Player2Score:   m.scores[1],
		CurrentPlayer:  m.turn,
		IsGameComplete: m.status == StatusCompleted,
		WinnerID:       optional(m.winner),
	}, nil
}

func (m *Match) other(player string) string {
	if player == m.player1 {
		return m.player2
	}
	return m.player1
}

// Hand returns the card ids still held by player.
func (m *Match) Hand(player string) ([]int, error) {
	hand, ok := m.hands[player]
	if !ok {
		return nil, fmt.Errorf("player %q in match %s: %w", player, m.id, matcherrors.ErrPlayerNotInMatch)
	}
	return slices.Clone(hand), nil
}

// HandCards resolves player's hand against the catalog.
func (m *Match) HandCards(player string) ([]Card, error) {
	ids, err := m.Hand(player)
	if err != nil {
		return nil, err
	}
	cards := make([]Card, 0, len(ids))
	for _, id := range ids {
		card, err := m.catalog.Lookup(id)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// State returns a deep copy of the match.
func (m *Match) State() State {
	hands := make(map[string][]int, len(m.hands))
	for p, h := range m.hands {
		hands[p] = slices.Clone(h)
	}
	return State{
		ID:           m.id,
		Player1ID:    m.player1,
		Player2ID:    m.player2,
		Status:       m.status,
		CurrentTurn:  m.turn,
		Player1Score: m.scores[0],
		Player2Score: m.scores[1],
		WinnerID:     m.winner,
		CreatedAt:    m.createdAt,
		CompletedAt:  m.completedAt,
		Placements:   m.board.Placements(),
		Hands:        hands,
	}
}

// Restore rebuilds a match from a saved State and checks its invariants.
func Restore(s State, catalog *Catalog, dealer *Dealer) (*Match, error) {
	if s.ID == "" || s.Player1ID == "" {
		return nil, fmt.Errorf("restore: match id and player1 are required")
	}
	if (s.Status == StatusWaiting) != (s.Player2ID == "") {
		return nil, fmt.Errorf("restore %s: status %s with player2 %q", s.ID, s.Status, s.Player2ID)
	}
	m := &Match{
		id:          s.ID,
		catalog:     catalog,
		dealer:      dealer,
		player1:     s.Player1ID,
		player2:     s.Player2ID,
		status:      s.Status,
		turn:        s.CurrentTurn,
		winner:      s.WinnerID,
		createdAt:   s.CreatedAt,
		completedAt: s.CompletedAt,
		board:       NewBoard(),
		hands:       make(map[string][]int, 2),
	}
	for _, p := range s.Placements {
		if _, err := catalog.Lookup(p.CardID); err != nil {
			return nil, fmt.Errorf("restore %s: %w", s.ID, err)
		}
		if p.Owner != m.player1 && p.Owner != m.player2 {
			return nil, fmt.Errorf("restore %s: placement owner %q is not in the match", s.ID, p.Owner)
		}
		if err := m.board.Place(p.Coord, p); err != nil {
			return nil, fmt.Errorf("restore %s: %w", s.ID, err)
		}
	}
	m.board.pending = false
	for p, h := range s.Hands {
		if p != m.player1 && p != m.player2 {
			return nil, fmt.Errorf("restore %s: hand for unknown player %q", s.ID, p)
		}
		m.hands[p] = slices.Clone(h)
	}
	if _, ok := m.hands[m.player1]; !ok {
		return nil, fmt.Errorf("restore %s: missing hand for %q", s.ID, m.player1)
	}
	if m.player2 != "" {
		if _, ok := m.hands[m.player2]; !ok {
			return nil, fmt.Errorf("restore %s: missing hand for %q", s.ID, m.player2)
		}
	}
	if err := m.checkHands(); err != nil {
		return nil, fmt.Errorf("restore %s: %w", s.ID, err)
	}
	if err := m.checkTurn(); err != nil {
		return nil, fmt.Errorf("restore %s: %w", s.ID, err)
	}
	m.scores[0] = m.board.OwnedBy(m.player1)
	m.scores[1] = m.board.OwnedBy(m.player2)
	if m.scores[0] != s.Player1Score || m.scores[1] != s.Player2Score {
		return nil, fmt.Errorf("restore %s: scores %d/%d do not match board %d/%d",
			s.ID, s.Player1Score, s.Player2Score, m.scores[0], m.scores[1])
	}
	if (m.status == StatusCompleted) != m.board.Full() {
		return nil, fmt.Errorf("restore %s: status %s with %d occupied cells", s.ID, m.status, m.board.Occupied())
	}
	return m, nil
}

// checkHands requires every hand card to exist and each seated player's
// hand plus the cards they placed to add up to HandSize.
func (m *Match) checkHands() error {
	placed := make(map[string]int, 2)
	for _, p := range m.board.Placements() {
		placed[p.OriginalOwner]++
	}
	for player, hand := range m.hands {
		for _, id := range hand {
			if _, err := m.catalog.Lookup(id); err != nil {
				return fmt.Errorf("hand of %q: %w", player, err)
			}
		}
		if n := len(hand) + placed[player]; n != HandSize {
			return fmt.Errorf("player %q holds %d and placed %d cards, want %d in total",
				player, len(hand), placed[player], HandSize)
		}
	}
	for player := range placed {
		if player != m.player1 && player != m.player2 {
			return fmt.Errorf("card placed by %q who is not in the match", player)
		}
	}
	return nil
}

// checkTurn requires an empty turn while waiting and, once play has started,
// the seat implied by the number of placed cards: player1 moves on even counts.
func (m *Match) checkTurn() error {
	if m.status == StatusWaiting {
		if m.turn != "" {
			return fmt.Errorf("waiting match has turn %q", m.turn)
		}
		return nil
	}
	want := m.player1
	if m.board.Occupied()%2 == 1 {
		want = m.player2
	}
	if m.turn != want {
		return fmt.Errorf("turn %q after %d placements, want %q", m.turn, m.board.Occupied(), want)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
