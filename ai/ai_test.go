package ai

import (
	"context"
	"sync"
	"testing"
	"time"

	"triple-triad-server/config"
	"triple-triad-server/game"
	"triple-triad-server/matchmaking"
)

func testCatalog(t *testing.T) *game.Catalog {
	t.Helper()
	c, err := game.NewCatalog([]game.Card{
		{ID: 1, Name: "weak", Up: 1, Right: 1, Down: 1, Left: 1},
		{ID: 2, Name: "strong-left", Up: 1, Right: 1, Down: 1, Left: 9},
		{ID: 3, Name: "strong-all", Up: 9, Right: 9, Down: 9, Left: 9},
		{ID: 4, Name: "mid", Up: 5, Right: 5, Down: 5, Left: 5},
		{ID: 5, Name: "also-weak", Up: 2, Right: 2, Down: 2, Left: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestBestMovePrefersMostCaptures(t *testing.T) {
	cat := testCatalog(t)
	s := game.State{
		Status:      game.StatusActive,
		CurrentTurn: "ai:Test",
		Placements: []game.Placement{
			{CardID: 1, Owner: "alice", OriginalOwner: "alice", Coord: game.Coord{X: 0, Y: 0}},
			{CardID: 1, Owner: "alice", OriginalOwner: "alice", Coord: game.Coord{X: 2, Y: 0}},
		},
		Hands: map[string][]int{"ai:Test": {4, 2, 3}},
	}

	mv, ok := BestMove(s, "ai:Test", cat)
	if !ok {
		t.Fatal("expected a move")
	}
	// (1,0) sits between both of alice's cards. strong-left only beats the
	// left one; strong-all and mid beat both, and the lower id wins the tie.
	want := Move{CardID: 3, Coord: game.Coord{X: 1, Y: 0}, Captures: 2}
	if mv != want {
		t.Errorf("BestMove = %+v, want %+v", mv, want)
	}
}

func TestBestMoveTieBreaksOnIndexThenCard(t *testing.T) {
	cat := testCatalog(t)
	s := game.State{
		Status:      game.StatusActive,
		CurrentTurn: "ai:Test",
		Hands:       map[string][]int{"ai:Test": {5, 4, 4}},
	}
	mv, ok := BestMove(s, "ai:Test", cat)
	if !ok {
		t.Fatal("expected a move")
	}
	if mv.Coord != (game.Coord{X: 0, Y: 0}) || mv.CardID != 4 || mv.Captures != 0 {
		t.Errorf("expected card 4 at (0,0) with no captures, got %+v", mv)
	}
}

func TestBestMoveIgnoresOwnCards(t *testing.T) {
	cat := testCatalog(t)
	s := game.State{
		Status:      game.StatusActive,
		CurrentTurn: "ai:Test",
		Placements: []game.Placement{
			{CardID: 1, Owner: "ai:Test", OriginalOwner: "ai:Test", Coord: game.Coord{X: 0, Y: 0}},
		},
		Hands: map[string][]int{"ai:Test": {3}},
	}
	mv, ok := BestMove(s, "ai:Test", cat)
	if !ok {
		t.Fatal("expected a move")
	}
	if mv.Captures != 0 {
		t.Errorf("own cards are never captured, got %+v", mv)
	}
}

func TestNoMoveWithoutCardsOrCells(t *testing.T) {
	cat := testCatalog(t)
	empty := game.State{Hands: map[string][]int{"ai:Test": {}}}
	if _, ok := BestMove(empty, "ai:Test", cat); ok {
		t.Error("BestMove with an empty hand should report false")
	}
	if _, ok := RandomMove(empty, "ai:Test"); ok {
		t.Error("RandomMove with an empty hand should report false")
	}

	var full []game.Placement
	for i := 0; i < game.CellCount; i++ {
		c, _ := game.CoordFromIndex(i)
		full = append(full, game.Placement{CardID: 1, Owner: "alice", OriginalOwner: "alice", Coord: c})
	}
	s := game.State{Placements: full, Hands: map[string][]int{"ai:Test": {1}}}
	if _, ok := RandomMove(s, "ai:Test"); ok {
		t.Error("RandomMove on a full board should report false")
	}
}

func TestRandomMoveIsLegal(t *testing.T) {
	s := game.State{
		Placements: []game.Placement{
			{CardID: 1, Owner: "alice", OriginalOwner: "alice", Coord: game.Coord{X: 1, Y: 1}},
		},
		Hands: map[string][]int{"ai:Test": {2, 5}},
	}
	for range 50 {
		mv, ok := RandomMove(s, "ai:Test")
		if !ok {
			t.Fatal("expected a move")
		}
		if mv.Coord == (game.Coord{X: 1, Y: 1}) {
			t.Fatal("picked an occupied cell")
		}
		if mv.CardID != 2 && mv.CardID != 5 {
			t.Fatalf("picked card %d not in hand", mv.CardID)
		}
	}
}

func TestPoolSeatsConfiguredProfiles(t *testing.T) {
	cfg := config.Defaults()
	pool := NewPool(context.Background(), nil, testCatalog(t), cfg.AIProfiles)

	id, obs := pool.Seat("m-1")
	if obs == nil {
		t.Fatal("Seat returned no observer")
	}
	if _, ok := pool.players[id]; !ok {
		t.Errorf("seat %q is not one of the profiles", id)
	}

	if _, ok := pool.Reseat("m-1", id); !ok {
		t.Errorf("Reseat(%q) should find the profile", id)
	}
	if _, ok := pool.Reseat("m-1", "alice"); ok {
		t.Error("humans are never reseated")
	}
	if _, ok := pool.Reseat("m-1", "ai:Unknown"); ok {
		t.Error("unknown profiles are not reseated")
	}
}

// fakeMover records PlayCard calls.
type fakeMover struct {
	mu     sync.Mutex
	state  game.State
	played chan Move
}

func (f *fakeMover) Get(string) (game.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *fakeMover) PlayCard(_ context.Context, _, _ string, cardID, x, y int) (game.PlayResult, error) {
	f.played <- Move{CardID: cardID, Coord: game.Coord{X: x, Y: y}}
	return game.PlayResult{Success: true}, nil
}

func TestPlayerMovesOnItsTurn(t *testing.T) {
	cat := testCatalog(t)
	mover := &fakeMover{played: make(chan Move, 1)}
	profiles := []config.AIParams{{Name: "Test", DelayMinMS: 1, DelayMaxMS: 2, UseBestMoveChance: 100}}
	pool := NewPool(context.Background(), mover, cat, profiles)
	id, obs := pool.Seat("m-1")

	mover.state = game.State{
		ID:          "m-1",
		Player1ID:   "alice",
		Player2ID:   id,
		Status:      game.StatusActive,
		CurrentTurn: id,
		Placements: []game.Placement{
			{CardID: 1, Owner: "alice", OriginalOwner: "alice", Coord: game.Coord{X: 1, Y: 1}},
		},
		Hands: map[string][]int{"alice": {4, 5}, id: {3}},
	}

	// Not our turn: nothing happens.
	obs.Notify(matchmaking.CardPlayed{Result: game.PlayResult{MatchID: "m-1", CurrentPlayer: "alice"}})
	obs.Notify(matchmaking.CardPlayed{Result: game.PlayResult{MatchID: "m-1", CurrentPlayer: id}})

	select {
	case mv := <-mover.played:
		if mv.CardID != 3 {
			t.Errorf("expected card 3, got %d", mv.CardID)
		}
		if mv.Coord != (game.Coord{X: 1, Y: 0}) {
			t.Errorf("expected the first capturing cell (1,0), got %+v", mv.Coord)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AI did not move")
	}
	select {
	case mv := <-mover.played:
		t.Errorf("unexpected second move %+v", mv)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPlayerSkipsStaleTurns(t *testing.T) {
	mover := &fakeMover{played: make(chan Move, 1)}
	profiles := []config.AIParams{{Name: "Test", DelayMinMS: 1, DelayMaxMS: 1}}
	pool := NewPool(context.Background(), mover, testCatalog(t), profiles)
	id, obs := pool.Seat("m-1")

	// By the time the move runs, the match says it is alice's turn.
	mover.state = game.State{ID: "m-1", Status: game.StatusActive, CurrentTurn: "alice", Hands: map[string][]int{id: {1}}}
	obs.Notify(matchmaking.CardPlayed{Result: game.PlayResult{MatchID: "m-1", CurrentPlayer: id}})

	select {
	case mv := <-mover.played:
		t.Errorf("AI moved out of turn: %+v", mv)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPlayerAgainstRegistry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cat := game.DefaultCatalog()
	dealer, err := game.NewDealer(cat)
	if err != nil {
		t.Fatal(err)
	}
	reg := matchmaking.NewRegistry(cat, dealer, nil, nil)
	reg.SetBots(NewPool(ctx, reg, cat, []config.AIParams{{Name: "Test", DelayMinMS: 1, DelayMaxMS: 3, UseBestMoveChance: 50}}))

	res, err := reg.CreateMatch(ctx, "alice", matchmaking.AIOpponent)
	if err != nil {
		t.Fatal(err)
	}
	id := res.Match.ID

	// alice keeps playing her first card into the first empty cell whenever
	// it is her turn; the AI answers each time.
	deadline := time.Now().Add(5 * time.Second)
	for {
		s, err := reg.Get(id)
		if err != nil {
			t.Fatal(err)
		}
		if s.Status == game.StatusCompleted {
			if s.Player1Score+s.Player2Score != game.CellCount {
				t.Errorf("scores %d+%d do not cover the board", s.Player1Score, s.Player2Score)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("match did not finish; turn=%s placements=%d", s.CurrentTurn, len(s.Placements))
		}
		if s.CurrentTurn != "alice" {
			time.Sleep(2 * time.Millisecond)
			continue
		}
		c := emptyCells(s)[0]
		if _, err := reg.PlayCard(ctx, id, "alice", s.Hands["alice"][0], c.X, c.Y); err != nil {
			t.Fatal(err)
		}
	}
}
