package storage

import (
	"context"
	"time"
)

// MatchStore abstracts persistence for live matches, match history and ratings.
// Implementations can be swapped for testing (mocks) or different backends.
type MatchStore interface {
	// Live matches
	SaveMatch(ctx context.Context, rec MatchRecord) error
	LoadOpenMatches(ctx context.Context) ([]MatchRecord, error)

	// Results
	RecordResult(ctx context.Context, res GameResult) error
	ListByUserID(ctx context.Context, userID string) ([]GameRecord, error)
	ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error)
	GetLeaderboardEntryByUserID(ctx context.Context, userID string) (*LeaderboardEntry, error)

	// Lifecycle
	Close()
}

// Ensure both backends implement MatchStore at compile time.
var (
	_ MatchStore = (*Store)(nil)
	_ MatchStore = (*SQLiteStore)(nil)
)

// MatchRecord is the persisted form of one match: the match row, one row
// per occupied cell and one row per card still in a hand.
type MatchRecord struct {
	ID           string
	Player1ID    string
	Player2ID    string
	Status       string
	CurrentTurn  string
	Player1Score int
	Player2Score int
	WinnerID     string
	CreatedAt    time.Time
	CompletedAt  *time.Time
	Placements   []PlacementRecord
	Hands        []HandRecord
}

// PlacementRecord is one occupied board cell.
type PlacementRecord struct {
	X             int
	Y             int
	CardID        int
	Owner         string
	OriginalOwner string
}

// HandRecord is the ordered list of cards a player still holds.
type HandRecord struct {
	PlayerID string
	CardIDs  []int
}

// GameResult is a finished match as recorded in history.
// WinnerIndex is 0 (player1), 1 (player2) or -1 for a draw.
type GameResult struct {
	MatchID      string
	Player1ID    string
	Player2ID    string
	Player1Score int
	Player2Score int
	WinnerIndex  int
	EndReason    string
}

// GameRecord is a single row returned for the history API.
type GameRecord struct {
	ID               string `json:"id"`
	PlayedAt         string `json:"played_at"` // ISO8601
	Player1ID        string `json:"player1_id"`
	Player2ID        string `json:"player2_id"`
	Player1Score     int    `json:"player1_score"`
	Player2Score     int    `json:"player2_score"`
	WinnerIndex      *int   `json:"winner_index"` // 0 or 1 (winner), or null for draw
	EndReason        string `json:"end_reason"`
	YourIndex        *int   `json:"your_index"` // 0 or 1 for the requesting user; set by ListByUserID
	Player1EloBefore *int   `json:"player1_elo_before,omitempty"`
	Player1EloAfter  *int   `json:"player1_elo_after,omitempty"`
	Player2EloBefore *int   `json:"player2_elo_before,omitempty"`
	Player2EloAfter  *int   `json:"player2_elo_after,omitempty"`
}

// LeaderboardEntry is a single row for the leaderboard API.
type LeaderboardEntry struct {
	UserID        string `json:"user_id"`
	Elo           int    `json:"elo"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	Draws         int    `json:"draws"`
	IsBot         bool   `json:"is_bot"`
	IsCurrentUser bool   `json:"is_current_user,omitempty"`
}
