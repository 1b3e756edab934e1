package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	assert.Error(t, err)
}

func TestSQLiteSaveAndLoadOpenMatches(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	active := MatchRecord{
		ID:           "m-active",
		Player1ID:    "alice",
		Player2ID:    "bob",
		Status:       "active",
		CurrentTurn:  "bob",
		Player1Score: 1,
		CreatedAt:    created,
		Placements: []PlacementRecord{
			{X: 1, Y: 1, CardID: 3, Owner: "alice", OriginalOwner: "alice"},
		},
		Hands: []HandRecord{
			{PlayerID: "alice", CardIDs: []int{5, 1, 9, 9}},
			{PlayerID: "bob", CardIDs: []int{2, 4, 6, 8, 10}},
		},
	}
	waiting := MatchRecord{
		ID:        "m-waiting",
		Player1ID: "carol",
		Status:    "waiting",
		CreatedAt: created.Add(time.Minute),
		Hands:     []HandRecord{{PlayerID: "carol", CardIDs: []int{1, 2, 3, 4, 5}}},
	}
	done := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	completed := MatchRecord{
		ID:          "m-done",
		Player1ID:   "dave",
		Player2ID:   "erin",
		Status:      "completed",
		WinnerID:    "dave",
		CreatedAt:   created.Add(-time.Hour),
		CompletedAt: &done,
	}
	for _, rec := range []MatchRecord{active, waiting, completed} {
		require.NoError(t, s.SaveMatch(ctx, rec))
	}

	recs, err := s.LoadOpenMatches(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2, "completed matches are not reloaded")

	assert.Equal(t, active, recs[0])
	assert.Equal(t, waiting, recs[1])
}

func TestSQLiteSaveMatchUpdatesOwnersAndHands(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	rec := MatchRecord{
		ID:          "m-1",
		Player1ID:   "alice",
		Player2ID:   "bob",
		Status:      "active",
		CurrentTurn: "bob",
		CreatedAt:   time.UnixMilli(1_700_000_000_000).UTC(),
		Placements:  []PlacementRecord{{X: 0, Y: 0, CardID: 1, Owner: "alice", OriginalOwner: "alice"}},
		Hands: []HandRecord{
			{PlayerID: "alice", CardIDs: []int{2, 3, 4, 5}},
			{PlayerID: "bob", CardIDs: []int{6, 7, 8, 9, 10}},
		},
	}
	require.NoError(t, s.SaveMatch(ctx, rec))

	// bob plays next to alice's card and flips it.
	rec.CurrentTurn = "alice"
	rec.Player2Score = 2
	rec.Placements = []PlacementRecord{
		{X: 0, Y: 0, CardID: 1, Owner: "bob", OriginalOwner: "alice"},
		{X: 1, Y: 0, CardID: 6, Owner: "bob", OriginalOwner: "bob"},
	}
	rec.Hands[1].CardIDs = []int{7, 8, 9, 10}
	require.NoError(t, s.SaveMatch(ctx, rec))

	recs, err := s.LoadOpenMatches(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rec, recs[0])
}

func TestSQLiteRecordResultUpdatesRatingsAndHistory(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	s.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	err := s.RecordResult(ctx, GameResult{
		MatchID: "m-1", Player1ID: "alice", Player2ID: "ai:Zell",
		Player1Score: 6, Player2Score: 3, WinnerIndex: 0, EndReason: "completed",
	})
	require.NoError(t, err)

	s.now = func() time.Time { return time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, s.RecordResult(ctx, GameResult{
		MatchID: "m-2", Player1ID: "alice", Player2ID: "bob",
		Player1Score: 4, Player2Score: 5, WinnerIndex: -1, EndReason: "completed",
	}))

	history, err := s.ListByUserID(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "m-2", history[0].ID, "newest first")
	assert.Nil(t, history[0].WinnerIndex, "draw has no winner index")
	require.NotNil(t, history[1].WinnerIndex)
	assert.Equal(t, 0, *history[1].WinnerIndex)
	assert.Equal(t, "2024-06-01T00:00:00Z", history[1].PlayedAt)
	require.NotNil(t, history[1].YourIndex)
	assert.Equal(t, 0, *history[1].YourIndex)
	require.NotNil(t, history[1].Player1EloBefore)
	assert.Equal(t, InitialElo, *history[1].Player1EloBefore)
	assert.Greater(t, *history[1].Player1EloAfter, InitialElo)

	bobHistory, err := s.ListByUserID(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobHistory, 1)
	assert.Equal(t, 1, *bobHistory[0].YourIndex)

	board, err := s.ListLeaderboard(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, "alice", board[0].UserID)
	assert.Equal(t, 1, board[0].Wins)
	assert.Equal(t, 1, board[0].Draws)
	for _, e := range board {
		assert.Equal(t, e.UserID == "ai:Zell", e.IsBot, e.UserID)
	}

	zell, err := s.GetLeaderboardEntryByUserID(ctx, "ai:Zell")
	require.NoError(t, err)
	require.NotNil(t, zell)
	assert.Equal(t, 1, zell.Losses)
	assert.Less(t, zell.Elo, InitialElo)

	missing, err := s.GetLeaderboardEntryByUserID(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteLeaderboardPaging(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	for i, pair := range [][2]string{{"a", "b"}, {"c", "d"}} {
		require.NoError(t, s.RecordResult(ctx, GameResult{
			MatchID: pair[0] + pair[1], Player1ID: pair[0], Player2ID: pair[1], WinnerIndex: i % 2,
		}))
	}

	page, err := s.ListLeaderboard(ctx, 2, 1)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	all, err := s.ListLeaderboard(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Elo, all[i].Elo)
	}
}

func TestNilStoresAreNoOps(t *testing.T) {
	ctx := context.Background()
	var pg *Store
	var lite *SQLiteStore
	for _, s := range []MatchStore{pg, lite} {
		assert.NoError(t, s.SaveMatch(ctx, MatchRecord{ID: "x"}))
		recs, err := s.LoadOpenMatches(ctx)
		assert.NoError(t, err)
		assert.Empty(t, recs)
		history, err := s.ListByUserID(ctx, "alice")
		assert.NoError(t, err)
		assert.Empty(t, history)
		s.Close()
	}
}
