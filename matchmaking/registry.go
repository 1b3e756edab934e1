package matchmaking

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"triple-triad-server/config"
	"triple-triad-server/game"
	"triple-triad-server/matcherrors"
	"triple-triad-server/storage"
)

// AIOpponent is the opponent id that asks for a computer player.
const AIOpponent = "AI"

const defaultMaxNameLength = 64

// BotProvider seats computer opponents.
type BotProvider interface {
	// Seat picks a bot for a new match and returns its player id and
	// the observer that plays for it.
	Seat(matchID string) (playerID string, o Observer)
	// Reseat returns the observer for a bot seat of a restored match,
	// or false if playerID is not a bot.
	Reseat(matchID, playerID string) (Observer, bool)
}

// MatchResult is a match snapshot plus the hand of the player who asked for it.
type MatchResult struct {
	Match game.State
	Hand  []game.Card
}

// entry holds one match. mu serialises every mutation of the match and
// guards observers; snap is replaced at the end of each critical section.
type entry struct {
	mu        sync.Mutex
	match     *game.Match
	observers []Observer
	snap      atomic.Pointer[game.State]
}

func (e *entry) publish() game.State {
	s := e.match.State()
	e.snap.Store(&s)
	return s
}

func (e *entry) emit(ev Event) {
	for _, o := range e.observers {
		o.Notify(ev)
	}
}

// Registry owns every live match. Operations on one match are serialised;
// different matches proceed independently. The map lock is never held while
// a match lock is being acquired.
type Registry struct {
	catalog      *game.Catalog
	dealer       *game.Dealer
	store        storage.MatchStore
	storeTimeout time.Duration
	maxNameLen   int
	now          func() time.Time
	newID        func() string

	bots atomic.Pointer[BotProvider]

	mu      sync.RWMutex
	matches map[string]*entry
}

// NewRegistry creates an empty registry. store may be nil, in which case
// matches are kept in memory only.
func NewRegistry(catalog *game.Catalog, dealer *game.Dealer, store storage.MatchStore, cfg *config.Config) *Registry {
	timeout := 2 * time.Second
	maxName := defaultMaxNameLength
	if cfg != nil {
		if cfg.StoreTimeoutMS > 0 {
			timeout = cfg.StoreTimeout()
		}
		if cfg.MaxNameLength > 0 {
			maxName = cfg.MaxNameLength
		}
	}
	return &Registry{
		catalog:      catalog,
		dealer:       dealer,
		store:        store,
		storeTimeout: timeout,
		maxNameLen:   maxName,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
		matches:      make(map[string]*entry),
	}
}

// SetBots installs the provider used for opponent "AI".
func (r *Registry) SetBots(b BotProvider) {
	r.bots.Store(&b)
}

func (r *Registry) botProvider() BotProvider {
	if p := r.bots.Load(); p != nil {
		return *p
	}
	return nil
}

// Catalog returns the card catalog matches are played with.
func (r *Registry) Catalog() *game.Catalog { return r.catalog }

// checkName rejects player ids longer than the configured limit. Empty ids
// are left to the match, which reports them in its own validation order.
func (r *Registry) checkName(player string) error {
	if n := utf8.RuneCountInString(player); n > r.maxNameLen {
		return fmt.Errorf("player id has %d characters, max %d: %w", n, r.maxNameLen, matcherrors.ErrInvalidPlayer)
	}
	return nil
}

func (r *Registry) lookup(matchID string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.matches[matchID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("match %s: %w", matchID, matcherrors.ErrMatchNotFound)
	}
	return e, nil
}

// CreateMatch creates a match for player. With no opponent the match waits
// for someone to join; opponent "AI" seats a bot and starts immediately, as
// does any other opponent id.
func (r *Registry) CreateMatch(ctx context.Context, player, opponent string) (MatchResult, error) {
	if err := r.checkName(player); err != nil {
		return MatchResult{}, err
	}
	if err := r.checkName(opponent); err != nil {
		return MatchResult{}, err
	}
	id := r.newID()
	var bot Observer
	if opponent == AIOpponent {
		bots := r.botProvider()
		if bots == nil {
			return MatchResult{}, fmt.Errorf("no AI opponents configured: %w", matcherrors.ErrInvalidPlayer)
		}
		opponent, bot = bots.Seat(id)
	}
	m, err := game.NewMatch(id, player, opponent, r.catalog, r.dealer, r.now())
	if err != nil {
		return MatchResult{}, err
	}
	e := &entry{match: m}
	if bot != nil {
		e.observers = append(e.observers, bot)
	}
	s := e.publish()
	// Not yet visible to other callers, so no lock is needed.
	r.save(ctx, s)

	r.mu.Lock()
	r.matches[id] = e
	r.mu.Unlock()

	hand, err := m.HandCards(player)
	if err != nil {
		return MatchResult{}, err
	}
	slog.Info("match created", "tag", "registry", "match", id, "player", player, "opponent", opponent, "status", s.Status)
	return MatchResult{Match: s, Hand: hand}, nil
}

// JoinMatch seats player as player2 and emits MatchJoined.
func (r *Registry) JoinMatch(ctx context.Context, matchID, player string) (MatchResult, error) {
	if err := r.checkName(player); err != nil {
		return MatchResult{}, err
	}
	e, err := r.lookup(matchID)
	if err != nil {
		return MatchResult{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.match.Join(player); err != nil {
		return MatchResult{}, err
	}
	s := e.publish()
	r.save(ctx, s)
	e.emit(MatchJoined{MatchID: matchID, PlayerID: player, Match: game.BuildMatchView(s)})

	hand, err := e.match.HandCards(player)
	if err != nil {
		return MatchResult{}, err
	}
	slog.Info("match joined", "tag", "registry", "match", matchID, "player", player)
	return MatchResult{Match: s, Hand: hand}, nil
}

// PlayCard plays cardID from player's hand at (x, y). On success it emits
// CardPlayed, followed by GameCompleted when the board is full. A failed
// play changes nothing and emits nothing.
func (r *Registry) PlayCard(ctx context.Context, matchID, player string, cardID, x, y int) (game.PlayResult, error) {
	e, err := r.lookup(matchID)
	if err != nil {
		return game.PlayResult{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.match.Play(player, cardID, game.Coord{X: x, Y: y}, r.now())
	if err != nil {
		return game.PlayResult{}, err
	}
	s := e.publish()
	r.save(ctx, s)
	e.emit(CardPlayed{Result: res})
	slog.Debug("card played", "tag", "registry", "match", matchID, "player", player, "card", cardID, "x", x, "y", y, "captured", len(res.Captured))

	if res.IsGameComplete {
		e.emit(GameCompleted{
			MatchID:      matchID,
			WinnerID:     res.WinnerID,
			Player1Score: s.Player1Score,
			Player2Score: s.Player2Score,
			CompletedAt:  s.CompletedAt,
		})
		r.recordResult(ctx, s)
		slog.Info("match completed", "tag", "registry", "match", matchID, "winner", s.WinnerID, "score", fmt.Sprintf("%d-%d", s.Player1Score, s.Player2Score))
	}
	return res, nil
}

// Get returns the latest snapshot of a match without taking its lock.
func (r *Registry) Get(matchID string) (game.State, error) {
	e, err := r.lookup(matchID)
	if err != nil {
		return game.State{}, err
	}
	return *e.snap.Load(), nil
}

// MatchDetails is a match with its board, as shown to clients.
type MatchDetails struct {
	Match      game.MatchView       `json:"match"`
	Placements []game.PlacementView `json:"placements"`
}

// GetMatch returns the client view of a match and its placements.
func (r *Registry) GetMatch(matchID string) (MatchDetails, error) {
	s, err := r.Get(matchID)
	if err != nil {
		return MatchDetails{}, err
	}
	return MatchDetails{
		Match:      game.BuildMatchView(s),
		Placements: game.BuildPlacementViews(s, r.catalog),
	}, nil
}

// GetHand returns the cards player still holds in a match.
func (r *Registry) GetHand(matchID, player string) ([]game.Card, error) {
	s, err := r.Get(matchID)
	if err != nil {
		return nil, err
	}
	ids, ok := s.Hands[player]
	if !ok {
		return nil, fmt.Errorf("player %q in match %s: %w", player, matchID, matcherrors.ErrPlayerNotInMatch)
	}
	cards := make([]game.Card, 0, len(ids))
	for _, id := range ids {
		card, err := r.catalog.Lookup(id)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// ListWaiting returns every waiting match, oldest first.
func (r *Registry) ListWaiting() []game.State {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.matches))
	for _, e := range r.matches {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var out []game.State
	for _, e := range entries {
		if s := e.snap.Load(); s.Status == game.StatusWaiting {
			out = append(out, *s)
		}
	}
	slices.SortFunc(out, func(a, b game.State) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// QuickMatch joins the oldest match someone else is waiting in. If player is
// already waiting in a match, that match is returned; otherwise, with nothing
// to join, a new waiting match is created.
func (r *Registry) QuickMatch(ctx context.Context, player string) (MatchResult, error) {
	if player == "" {
		return MatchResult{}, matcherrors.ErrInvalidPlayer
	}
	if err := r.checkName(player); err != nil {
		return MatchResult{}, err
	}
	waiting := r.ListWaiting()
	for _, s := range waiting {
		if s.Player1ID == player {
			hand, err := r.GetHand(s.ID, player)
			if err != nil {
				return MatchResult{}, err
			}
			return MatchResult{Match: s, Hand: hand}, nil
		}
	}
	for _, s := range waiting {
		res, err := r.JoinMatch(ctx, s.ID, player)
		switch {
		case err == nil:
			return res, nil
		case errors.Is(err, matcherrors.ErrMatchFull), errors.Is(err, matcherrors.ErrMatchNotWaiting):
			// Lost the race for this one; try the next.
			continue
		default:
			return MatchResult{}, err
		}
	}
	return r.CreateMatch(ctx, player, "")
}

// Subscribe registers o for the events of a match.
func (r *Registry) Subscribe(matchID string, o Observer) error {
	e, err := r.lookup(matchID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !slices.Contains(e.observers, o) {
		e.observers = append(e.observers, o)
	}
	return nil
}

// Unsubscribe removes o from a match's observers.
func (r *Registry) Unsubscribe(matchID string, o Observer) error {
	e, err := r.lookup(matchID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.observers = slices.DeleteFunc(e.observers, func(x Observer) bool { return x == o })
	e.mu.Unlock()
	return nil
}

// UnsubscribeAll removes o from every match, e.g. when a connection closes.
func (r *Registry) UnsubscribeAll(o Observer) {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.matches))
	for _, e := range r.matches {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		e.observers = slices.DeleteFunc(e.observers, func(x Observer) bool { return x == o })
		e.mu.Unlock()
	}
}

// Restore loads waiting and active matches from the store. Matches that fail
// validation are logged and skipped. Bot seats are handed back to the bot
// provider, which is told about the match so it can move if it is its turn.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	recs, err := r.store.LoadOpenMatches(ctx)
	if err != nil {
		return 0, fmt.Errorf("load open matches: %w", err)
	}
	bots := r.botProvider()
	restored := 0
	for _, rec := range recs {
		s, err := fromRecord(rec)
		if err != nil {
			slog.Warn("skipping stored match", "tag", "registry", "match", rec.ID, "err", err)
			continue
		}
		m, err := game.Restore(s, r.catalog, r.dealer)
		if err != nil {
			slog.Warn("skipping stored match", "tag", "registry", "match", rec.ID, "err", err)
			continue
		}
		e := &entry{match: m}
		snap := e.publish()

		r.mu.Lock()
		_, exists := r.matches[s.ID]
		if !exists {
			r.matches[s.ID] = e
		}
		r.mu.Unlock()
		if exists {
			continue
		}
		restored++

		if bots == nil || snap.Status != game.StatusActive {
			continue
		}
		if o, ok := bots.Reseat(snap.ID, snap.Player2ID); ok {
			e.mu.Lock()
			e.observers = append(e.observers, o)
			o.Notify(MatchJoined{MatchID: snap.ID, PlayerID: snap.Player2ID, Match: game.BuildMatchView(snap)})
			e.mu.Unlock()
		}
	}
	slog.Info("restored matches", "tag", "registry", "count", restored)
	return restored, nil
}

// save writes the match through to the store. Failures are logged; the
// in-memory match stays authoritative.
func (r *Registry) save(ctx context.Context, s game.State) {
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.storeTimeout)
	defer cancel()
	if err := r.store.SaveMatch(ctx, toRecord(s)); err != nil {
		slog.Error("failed to save match", "tag", "registry", "match", s.ID, "err", err)
	}
}

func (r *Registry) recordResult(ctx context.Context, s game.State) {
	if r.store == nil {
		return
	}
	winner := -1
	switch s.WinnerID {
	case "":
	case s.Player1ID:
		winner = 0
	case s.Player2ID:
		winner = 1
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.storeTimeout)
	defer cancel()
	err := r.store.RecordResult(ctx, storage.GameResult{
		MatchID:      s.ID,
		Player1ID:    s.Player1ID,
		Player2ID:    s.Player2ID,
		Player1Score: s.Player1Score,
		Player2Score: s.Player2Score,
		WinnerIndex:  winner,
		EndReason:    "completed",
	})
	if err != nil {
		slog.Error("failed to record result", "tag", "registry", "match", s.ID, "err", err)
	}
}
