package ai

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"triple-triad-server/config"
	"triple-triad-server/game"
	"triple-triad-server/matchmaking"
	"triple-triad-server/storage"
)

// Mover is what an AI seat needs from the registry.
type Mover interface {
	Get(matchID string) (game.State, error)
	PlayCard(ctx context.Context, matchID, player string, cardID, x, y int) (game.PlayResult, error)
}

// Move is one card placed at one cell.
type Move struct {
	CardID   int
	Coord    game.Coord
	Captures int
}

// Reasons logged with each move.
const (
	moveReasonBest   = "best"
	moveReasonRandom = "random"
)

// Pool hands out AI seats, one Player per configured profile.
type Pool struct {
	ctx     context.Context
	mover   Mover
	catalog *game.Catalog

	mu      sync.Mutex
	players map[string]*Player // by seat id
	order   []string
}

// NewPool builds one Player per profile. Moves scheduled after ctx is
// cancelled are dropped.
func NewPool(ctx context.Context, mover Mover, catalog *game.Catalog, profiles []config.AIParams) *Pool {
	p := &Pool{
		ctx:     ctx,
		mover:   mover,
		catalog: catalog,
		players: make(map[string]*Player, len(profiles)),
	}
	for _, params := range profiles {
		id := storage.AIUserIDPrefix + params.Name
		if _, dup := p.players[id]; dup {
			continue
		}
		p.players[id] = &Player{id: id, params: params, pool: p}
		p.order = append(p.order, id)
	}
	return p
}

// Seat picks a random profile for a new match.
func (p *Pool) Seat(matchID string) (string, matchmaking.Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.order) == 0 {
		// NewPool with no profiles; fall back to a default opponent.
		params := config.AIParams{Name: "CPU", DelayMinMS: 500, DelayMaxMS: 1000, UseBestMoveChance: 75}
		id := storage.AIUserIDPrefix + params.Name
		p.players[id] = &Player{id: id, params: params, pool: p}
		p.order = append(p.order, id)
	}
	pl := p.players[p.order[rand.IntN(len(p.order))]]
	slog.Debug("seating AI", "tag", "ai", "match", matchID, "name", pl.params.Name)
	return pl.id, pl
}

// Reseat returns the Player behind playerID for a restored match.
func (p *Pool) Reseat(matchID, playerID string) (matchmaking.Observer, bool) {
	if !storage.IsBot(playerID) {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pl, ok := p.players[playerID]
	if !ok {
		slog.Warn("no AI profile for restored seat", "tag", "ai", "match", matchID, "player", playerID)
		return nil, false
	}
	return pl, true
}

// Player plays every match it is seated in under one profile.
type Player struct {
	id     string
	params config.AIParams
	pool   *Pool
}

// ID returns the seat id, e.g. "ai:Zell".
func (pl *Player) ID() string { return pl.id }

// Notify schedules a move whenever an event leaves the turn with this seat.
// It never blocks: the move runs later on its own goroutine.
func (pl *Player) Notify(ev matchmaking.Event) {
	switch ev := ev.(type) {
	case matchmaking.MatchJoined:
		if ev.Match.Status == game.StatusActive.String() && ev.Match.CurrentPlayerTurn == pl.id {
			pl.schedule(ev.MatchID)
		}
	case matchmaking.CardPlayed:
		if !ev.Result.IsGameComplete && ev.Result.CurrentPlayer == pl.id {
			pl.schedule(ev.Result.MatchID)
		}
	}
}

func (pl *Player) schedule(matchID string) {
	delay := pl.params.DelayMinMS
	if pl.params.DelayMaxMS > pl.params.DelayMinMS {
		delay += rand.IntN(pl.params.DelayMaxMS - pl.params.DelayMinMS)
	}
	time.AfterFunc(time.Duration(delay)*time.Millisecond, func() { pl.move(matchID) })
}

func (pl *Player) move(matchID string) {
	ctx := pl.pool.ctx
	if ctx.Err() != nil {
		return
	}
	s, err := pl.pool.mover.Get(matchID)
	if err != nil {
		slog.Warn("AI lost its match", "tag", "ai", "name", pl.params.Name, "match", matchID, "err", err)
		return
	}
	// Re-check after the delay in case the match moved on.
	if s.Status != game.StatusActive || s.CurrentTurn != pl.id {
		return
	}

	chance := min(max(pl.params.UseBestMoveChance, 0), 100)
	mv, ok := Move{}, false
	reason := moveReasonRandom
	if rand.IntN(100) < chance {
		mv, ok = BestMove(s, pl.id, pl.pool.catalog)
		reason = moveReasonBest
	}
	if !ok {
		mv, ok = RandomMove(s, pl.id)
		reason = moveReasonRandom
	}
	if !ok {
		return
	}
	slog.Debug("AI plays", "tag", "ai", "name", pl.params.Name, "match", matchID, "card", mv.CardID, "x", mv.Coord.X, "y", mv.Coord.Y, "reason", reason)
	if _, err := pl.pool.mover.PlayCard(ctx, matchID, pl.id, mv.CardID, mv.Coord.X, mv.Coord.Y); err != nil {
		slog.Warn("AI move rejected", "tag", "ai", "name", pl.params.Name, "match", matchID, "err", err)
	}
}

// BestMove returns the legal move for seat that captures the most cards right
// away. Ties go to the lowest board index, then the lowest card id. It
// reports false when seat has no card or the board has no empty cell.
func BestMove(s game.State, seat string, catalog *game.Catalog) (Move, bool) {
	hand := slices.Clone(s.Hands[seat])
	slices.Sort(hand)
	hand = slices.Compact(hand)

	var best Move
	found := false
	for _, c := range emptyCells(s) {
		for _, cardID := range hand {
			n, err := capturesFor(s, catalog, seat, cardID, c)
			if err != nil {
				continue
			}
			if !found || n > best.Captures {
				best = Move{CardID: cardID, Coord: c, Captures: n}
				found = true
			}
		}
	}
	return best, found
}

// RandomMove picks any legal move for seat.
func RandomMove(s game.State, seat string) (Move, bool) {
	hand := s.Hands[seat]
	cells := emptyCells(s)
	if len(hand) == 0 || len(cells) == 0 {
		return Move{}, false
	}
	return Move{
		CardID: hand[rand.IntN(len(hand))],
		Coord:  cells[rand.IntN(len(cells))],
	}, true
}

func emptyCells(s game.State) []game.Coord {
	var taken [game.CellCount]bool
	for _, p := range s.Placements {
		taken[p.Coord.Index()] = true
	}
	var out []game.Coord
	for i, t := range taken {
		if !t {
			c, _ := game.CoordFromIndex(i)
			out = append(out, c)
		}
	}
	return out
}

// capturesFor replays the board into a scratch copy, places cardID at c and
// counts what the capture rule would flip.
func capturesFor(s game.State, catalog *game.Catalog, seat string, cardID int, c game.Coord) (int, error) {
	b := game.NewBoard()
	for _, p := range s.Placements {
		if err := b.Place(p.Coord, p); err != nil {
			return 0, err
		}
	}
	if err := b.Place(c, game.Placement{CardID: cardID, Owner: seat, OriginalOwner: seat}); err != nil {
		return 0, err
	}
	captured, err := game.Resolve(b, catalog, c)
	if err != nil {
		return 0, err
	}
	return len(captured), nil
}
