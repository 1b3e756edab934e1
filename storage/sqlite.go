package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const createTablesSQLite = `
CREATE TABLE IF NOT EXISTS matches (
	id             TEXT PRIMARY KEY,
	player1_id     TEXT NOT NULL,
	player2_id     TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	current_turn   TEXT NOT NULL DEFAULT '',
	player1_score  INTEGER NOT NULL DEFAULT 0,
	player2_score  INTEGER NOT NULL DEFAULT 0,
	winner_id      TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL,
	completed_at   INTEGER
);
CREATE INDEX IF NOT EXISTS idx_matches_status ON matches(status);
CREATE TABLE IF NOT EXISTS placements (
	match_id        TEXT NOT NULL REFERENCES matches(id),
	x               INTEGER NOT NULL,
	y               INTEGER NOT NULL,
	card_id         INTEGER NOT NULL,
	owner           TEXT NOT NULL,
	original_owner  TEXT NOT NULL,
	PRIMARY KEY (match_id, x, y)
);
CREATE TABLE IF NOT EXISTS hands (
	match_id   TEXT NOT NULL REFERENCES matches(id),
	player_id  TEXT NOT NULL,
	slot       INTEGER NOT NULL,
	card_id    INTEGER NOT NULL,
	PRIMARY KEY (match_id, player_id, slot)
);
CREATE TABLE IF NOT EXISTS game_history (
	id                  TEXT PRIMARY KEY,
	played_at           INTEGER NOT NULL,
	player1_id          TEXT NOT NULL,
	player2_id          TEXT NOT NULL,
	player1_score       INTEGER NOT NULL,
	player2_score       INTEGER NOT NULL,
	winner_index        INTEGER,
	end_reason          TEXT NOT NULL DEFAULT '',
	player1_elo_before  INTEGER,
	player1_elo_after   INTEGER,
	player2_elo_before  INTEGER,
	player2_elo_after   INTEGER
);
CREATE INDEX IF NOT EXISTS idx_game_history_player1 ON game_history(player1_id);
CREATE INDEX IF NOT EXISTS idx_game_history_player2 ON game_history(player2_id);
CREATE TABLE IF NOT EXISTS player_ratings (
	user_id     TEXT PRIMARY KEY,
	elo         INTEGER NOT NULL DEFAULT 1000,
	wins        INTEGER NOT NULL DEFAULT 0,
	losses      INTEGER NOT NULL DEFAULT 0,
	draws       INTEGER NOT NULL DEFAULT 0,
	updated_at  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_player_ratings_elo ON player_ratings(elo DESC);
`

// SQLiteStore persists matches and history in a single SQLite file.
// Timestamps are stored as unix milliseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens (or creates) the database at path and ensures the tables exist.
// The special path ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path)
	}
	dsn += "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(createTablesSQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	slog.Info("opened SQLite store", "tag", "storage", "path", path)
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() {
	if s != nil && s.db != nil {
		_ = s.db.Close()
	}
}

// SaveMatch upserts the match row, its placements and its hands in one transaction.
func (s *SQLiteStore) SaveMatch(ctx context.Context, rec MatchRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var completedAt sql.NullInt64
	if rec.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: toMillis(*rec.CompletedAt), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO matches (id, player1_id, player2_id, status, current_turn, player1_score, player2_score, winner_id, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			player2_id = excluded.player2_id,
			status = excluded.status,
			current_turn = excluded.current_turn,
			player1_score = excluded.player1_score,
			player2_score = excluded.player2_score,
			winner_id = excluded.winner_id,
			completed_at = excluded.completed_at`,
		rec.ID, rec.Player1ID, rec.Player2ID, rec.Status, rec.CurrentTurn, rec.Player1Score, rec.Player2Score, rec.WinnerID, toMillis(rec.CreatedAt), completedAt)
	if err != nil {
		return fmt.Errorf("upsert match: %w", err)
	}

	for _, p := range rec.Placements {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO placements (match_id, x, y, card_id, owner, original_owner)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (match_id, x, y) DO UPDATE SET owner = excluded.owner`,
			rec.ID, p.X, p.Y, p.CardID, p.Owner, p.OriginalOwner)
		if err != nil {
			return fmt.Errorf("upsert placement: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM hands WHERE match_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("clear hands: %w", err)
	}
	for _, h := range rec.Hands {
		for slot, cardID := range h.CardIDs {
			_, err := tx.ExecContext(ctx, `INSERT INTO hands (match_id, player_id, slot, card_id) VALUES (?, ?, ?, ?)`,
				rec.ID, h.PlayerID, slot, cardID)
			if err != nil {
				return fmt.Errorf("insert hand: %w", err)
			}
		}
	}
	return tx.Commit()
}

// LoadOpenMatches returns every waiting or active match, oldest first.
func (s *SQLiteStore) LoadOpenMatches(ctx context.Context) ([]MatchRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player1_id, player2_id, status, current_turn, player1_score, player2_score, winner_id, created_at, completed_at
		FROM matches
		WHERE status IN ('waiting', 'active')
		ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	var recs []MatchRecord
	for rows.Next() {
		var r MatchRecord
		var createdAt int64
		var completedAt sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Player1ID, &r.Player2ID, &r.Status, &r.CurrentTurn, &r.Player1Score, &r.Player2Score, &r.WinnerID, &createdAt, &completedAt); err != nil {
			rows.Close()
			return nil, err
		}
		r.CreatedAt = fromMillis(createdAt)
		if completedAt.Valid {
			t := fromMillis(completedAt.Int64)
			r.CompletedAt = &t
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// The single connection is free again once rows is closed.
	for i := range recs {
		if err := s.loadBoardAndHands(ctx, &recs[i]); err != nil {
			return nil, fmt.Errorf("load match %s: %w", recs[i].ID, err)
		}
	}
	return recs, nil
}

func (s *SQLiteStore) loadBoardAndHands(ctx context.Context, rec *MatchRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT x, y, card_id, owner, original_owner FROM placements WHERE match_id = ? ORDER BY y, x`, rec.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var p PlacementRecord
		if err := rows.Scan(&p.X, &p.Y, &p.CardID, &p.Owner, &p.OriginalOwner); err != nil {
			rows.Close()
			return err
		}
		rec.Placements = append(rec.Placements, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT player_id, card_id FROM hands WHERE match_id = ? ORDER BY player_id, slot`, rec.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var player string
		var cardID int
		if err := rows.Scan(&player, &cardID); err != nil {
			return err
		}
		rec.Hands = appendHandCard(rec.Hands, player, cardID)
	}
	return rows.Err()
}

// RecordResult updates both players' ratings and records the finished match
// in game_history, in one transaction.
func (s *SQLiteStore) RecordResult(ctx context.Context, res GameResult) error {
	if s == nil || s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := toMillis(s.now())
	ids := []string{res.Player1ID, res.Player2ID}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT INTO player_ratings (user_id, updated_at) VALUES (?, ?) ON CONFLICT (user_id) DO NOTHING`, id, now); err != nil {
			return err
		}
	}
	var t [2]tally
	for i, id := range ids {
		err := tx.QueryRowContext(ctx, `SELECT elo, wins, losses, draws FROM player_ratings WHERE user_id = ?`, id).
			Scan(&t[i].elo, &t[i].wins, &t[i].losses, &t[i].draws)
		if err != nil {
			return err
		}
	}
	before := [2]int{t[0].elo, t[1].elo}
	t[0].elo, t[1].elo = computeEloUpdates(t[0].elo, t[1].elo, res.WinnerIndex)
	applyResult(&t[0], &t[1], res.WinnerIndex)

	for i, id := range ids {
		_, err := tx.ExecContext(ctx, `UPDATE player_ratings SET elo = ?, wins = ?, losses = ?, draws = ?, updated_at = ? WHERE user_id = ?`,
			t[i].elo, t[i].wins, t[i].losses, t[i].draws, now, id)
		if err != nil {
			return err
		}
	}

	var winner sql.NullInt64
	if res.WinnerIndex == 0 || res.WinnerIndex == 1 {
		winner = sql.NullInt64{Int64: int64(res.WinnerIndex), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO game_history (id, played_at, player1_id, player2_id, player1_score, player2_score, winner_index, end_reason, player1_elo_before, player1_elo_after, player2_elo_before, player2_elo_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		res.MatchID, now, res.Player1ID, res.Player2ID, res.Player1Score, res.Player2Score, winner, res.EndReason, before[0], t[0].elo, before[1], t[1].elo)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ListByUserID returns all games where the user participated, newest first,
// with your_index set for the requesting user.
func (s *SQLiteStore) ListByUserID(ctx context.Context, userID string) ([]GameRecord, error) {
	if s == nil || s.db == nil {
		return []GameRecord{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, played_at, player1_id, player2_id, player1_score, player2_score, winner_index, end_reason,
			player1_elo_before, player1_elo_after, player2_elo_before, player2_elo_after
		FROM game_history
		WHERE player1_id = ? OR player2_id = ?
		ORDER BY played_at DESC, id ASC`,
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []GameRecord{}
	for rows.Next() {
		var r GameRecord
		var playedAt int64
		var winner, p1Before, p1After, p2Before, p2After sql.NullInt64
		if err := rows.Scan(&r.ID, &playedAt, &r.Player1ID, &r.Player2ID, &r.Player1Score, &r.Player2Score, &winner, &r.EndReason,
			&p1Before, &p1After, &p2Before, &p2After); err != nil {
			return nil, err
		}
		r.PlayedAt = fromMillis(playedAt).Format(time.RFC3339)
		r.WinnerIndex = nullableInt(winner)
		r.Player1EloBefore = nullableInt(p1Before)
		r.Player1EloAfter = nullableInt(p1After)
		r.Player2EloBefore = nullableInt(p2Before)
		r.Player2EloAfter = nullableInt(p2After)
		yi := 0
		if r.Player2ID == userID {
			yi = 1
		}
		r.YourIndex = &yi
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// ListLeaderboard returns entries ordered by elo DESC, with optional limit and offset.
func (s *SQLiteStore) ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	if s == nil || s.db == nil {
		return []LeaderboardEntry{}, nil
	}
	limit, offset = clampPage(limit, offset)
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, elo, wins, losses, draws
		FROM player_ratings
		ORDER BY elo DESC, user_id ASC
		LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Elo, &e.Wins, &e.Losses, &e.Draws); err != nil {
			return nil, err
		}
		e.IsBot = IsBot(e.UserID)
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetLeaderboardEntryByUserID returns one player's entry, or (nil, nil) if the player has no rating yet.
func (s *SQLiteStore) GetLeaderboardEntryByUserID(ctx context.Context, userID string) (*LeaderboardEntry, error) {
	if s == nil || s.db == nil || userID == "" {
		return nil, nil
	}
	var e LeaderboardEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, elo, wins, losses, draws
		FROM player_ratings
		WHERE user_id = ?`,
		userID).Scan(&e.UserID, &e.Elo, &e.Wins, &e.Losses, &e.Draws)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.IsBot = IsBot(e.UserID)
	return &e, nil
}
