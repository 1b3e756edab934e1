package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTablesPostgres = `
CREATE TABLE IF NOT EXISTS matches (
	id             TEXT PRIMARY KEY,
	player1_id     TEXT NOT NULL,
	player2_id     TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	current_turn   TEXT NOT NULL DEFAULT '',
	player1_score  INT  NOT NULL DEFAULT 0,
	player2_score  INT  NOT NULL DEFAULT 0,
	winner_id      TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	completed_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_matches_status ON matches(status);
CREATE TABLE IF NOT EXISTS placements (
	match_id        TEXT NOT NULL REFERENCES matches(id),
	x               SMALLINT NOT NULL,
	y               SMALLINT NOT NULL,
	card_id         INT  NOT NULL,
	owner           TEXT NOT NULL,
	original_owner  TEXT NOT NULL,
	PRIMARY KEY (match_id, x, y)
);
CREATE TABLE IF NOT EXISTS hands (
	match_id   TEXT NOT NULL REFERENCES matches(id),
	player_id  TEXT NOT NULL,
	slot       SMALLINT NOT NULL,
	card_id    INT  NOT NULL,
	PRIMARY KEY (match_id, player_id, slot)
);
CREATE TABLE IF NOT EXISTS game_history (
	id                  TEXT PRIMARY KEY,
	played_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	player1_id          TEXT NOT NULL,
	player2_id          TEXT NOT NULL,
	player1_score       INT NOT NULL,
	player2_score       INT NOT NULL,
	winner_index        SMALLINT,
	end_reason          TEXT,
	player1_elo_before  INT,
	player1_elo_after   INT,
	player2_elo_before  INT,
	player2_elo_after   INT
);
CREATE INDEX IF NOT EXISTS idx_game_history_player1 ON game_history(player1_id);
CREATE INDEX IF NOT EXISTS idx_game_history_player2 ON game_history(player2_id);
CREATE TABLE IF NOT EXISTS player_ratings (
	user_id     TEXT PRIMARY KEY,
	elo         INT  NOT NULL DEFAULT 1000,
	wins        INT  NOT NULL DEFAULT 0,
	losses      INT  NOT NULL DEFAULT 0,
	draws       INT  NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_player_ratings_elo ON player_ratings(elo DESC);
`

// Store persists matches and history in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the tables exist.
// If databaseURL is empty, NewStore returns (nil, nil) and no persistence occurs.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTablesPostgres); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	slog.Info("connected to Postgres", "tag", "storage")
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// SaveMatch upserts the match row, its placements and its hands in one transaction.
func (s *Store) SaveMatch(ctx context.Context, rec MatchRecord) error {
	if s == nil || s.pool == nil {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO matches (id, player1_id, player2_id, status, current_turn, player1_score, player2_score, winner_id, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			player2_id = excluded.player2_id,
			status = excluded.status,
			current_turn = excluded.current_turn,
			player1_score = excluded.player1_score,
			player2_score = excluded.player2_score,
			winner_id = excluded.winner_id,
			completed_at = excluded.completed_at`,
		rec.ID, rec.Player1ID, rec.Player2ID, rec.Status, rec.CurrentTurn, rec.Player1Score, rec.Player2Score, rec.WinnerID, rec.CreatedAt, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("upsert match: %w", err)
	}

	batch := &pgx.Batch{}
	for _, p := range rec.Placements {
		batch.Queue(`
			INSERT INTO placements (match_id, x, y, card_id, owner, original_owner)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (match_id, x, y) DO UPDATE SET owner = excluded.owner`,
			rec.ID, p.X, p.Y, p.CardID, p.Owner, p.OriginalOwner)
	}
	batch.Queue(`DELETE FROM hands WHERE match_id = $1`, rec.ID)
	for _, h := range rec.Hands {
		for slot, cardID := range h.CardIDs {
			batch.Queue(`INSERT INTO hands (match_id, player_id, slot, card_id) VALUES ($1, $2, $3, $4)`,
				rec.ID, h.PlayerID, slot, cardID)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save placements and hands: %w", err)
	}
	return tx.Commit(ctx)
}

// LoadOpenMatches returns every waiting or active match, oldest first.
func (s *Store) LoadOpenMatches(ctx context.Context) ([]MatchRecord, error) {
	if s == nil || s.pool == nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, player1_id, player2_id, status, current_turn, player1_score, player2_score, winner_id, created_at, completed_at
		FROM matches
		WHERE status IN ('waiting', 'active')
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (MatchRecord, error) {
		var r MatchRecord
		err := row.Scan(&r.ID, &r.Player1ID, &r.Player2ID, &r.Status, &r.CurrentTurn, &r.Player1Score, &r.Player2Score, &r.WinnerID, &r.CreatedAt, &r.CompletedAt)
		return r, err
	})
	if err != nil {
		return nil, err
	}

	for i := range recs {
		if err := s.loadBoardAndHands(ctx, &recs[i]); err != nil {
			return nil, fmt.Errorf("load match %s: %w", recs[i].ID, err)
		}
	}
	return recs, nil
}

func (s *Store) loadBoardAndHands(ctx context.Context, rec *MatchRecord) error {
	rows, err := s.pool.Query(ctx, `
		SELECT x, y, card_id, owner, original_owner FROM placements WHERE match_id = $1 ORDER BY y, x`, rec.ID)
	if err != nil {
		return err
	}
	rec.Placements, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (PlacementRecord, error) {
		var p PlacementRecord
		err := row.Scan(&p.X, &p.Y, &p.CardID, &p.Owner, &p.OriginalOwner)
		return p, err
	})
	if err != nil {
		return err
	}

	rows, err = s.pool.Query(ctx, `
		SELECT player_id, card_id FROM hands WHERE match_id = $1 ORDER BY player_id, slot`, rec.ID)
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

// appendHandCard appends cardID to player's hand, starting a new HandRecord
// when rows move on to the next player.
func appendHandCard(hands []HandRecord, player string, cardID int) []HandRecord {
	if n := len(hands); n > 0 && hands[n-1].PlayerID == player {
		hands[n-1].CardIDs = append(hands[n-1].CardIDs, cardID)
		return hands
	}
	return append(hands, HandRecord{PlayerID: player, CardIDs: []int{cardID}})
}

// RecordResult updates both players' ratings and records the finished match
// in game_history, in one transaction.
func (s *Store) RecordResult(ctx context.Context, res GameResult) error {
	if s == nil || s.pool == nil {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Ensure both players have a row (default 1000 elo, 0 W/L/D)
	for _, id := range []string{res.Player1ID, res.Player2ID} {
		if _, err := tx.Exec(ctx, `INSERT INTO player_ratings (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, id); err != nil {
			return err
		}
	}
	var t [2]tally
	for i, id := range []string{res.Player1ID, res.Player2ID} {
		err := tx.QueryRow(ctx, `SELECT elo, wins, losses, draws FROM player_ratings WHERE user_id = $1`, id).
			Scan(&t[i].elo, &t[i].wins, &t[i].losses, &t[i].draws)
		if err != nil {
			return err
		}
	}
	before := [2]int{t[0].elo, t[1].elo}
	t[0].elo, t[1].elo = computeEloUpdates(t[0].elo, t[1].elo, res.WinnerIndex)
	applyResult(&t[0], &t[1], res.WinnerIndex)

	for i, id := range []string{res.Player1ID, res.Player2ID} {
		_, err := tx.Exec(ctx, `UPDATE player_ratings SET elo = $1, wins = $2, losses = $3, draws = $4, updated_at = now() WHERE user_id = $5`,
			t[i].elo, t[i].wins, t[i].losses, t[i].draws, id)
		if err != nil {
			return err
		}
	}

	var winner *int
	if res.WinnerIndex == 0 || res.WinnerIndex == 1 {
		winner = &res.WinnerIndex
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO game_history (id, player1_id, player2_id, player1_score, player2_score, winner_index, end_reason, player1_elo_before, player1_elo_after, player2_elo_before, player2_elo_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		res.MatchID, res.Player1ID, res.Player2ID, res.Player1Score, res.Player2Score, winner, res.EndReason, before[0], t[0].elo, before[1], t[1].elo)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListByUserID returns all games where the user participated, ordered by played_at DESC.
// Each record has your_index set to 0 or 1 so the client can show "You" vs opponent.
func (s *Store) ListByUserID(ctx context.Context, userID string) ([]GameRecord, error) {
	if s == nil || s.pool == nil {
		return []GameRecord{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, played_at, player1_id, player2_id, player1_score, player2_score, winner_index, COALESCE(end_reason, ''),
			player1_elo_before, player1_elo_after, player2_elo_before, player2_elo_after
		FROM game_history
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY played_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []GameRecord{}
	for rows.Next() {
		var r GameRecord
		var playedAt time.Time
		if err := rows.Scan(&r.ID, &playedAt, &r.Player1ID, &r.Player2ID, &r.Player1Score, &r.Player2Score, &r.WinnerIndex, &r.EndReason,
			&r.Player1EloBefore, &r.Player1EloAfter, &r.Player2EloBefore, &r.Player2EloAfter); err != nil {
			return nil, err
		}
		r.PlayedAt = playedAt.UTC().Format(time.RFC3339)
		yi := 0
		if r.Player2ID == userID {
			yi = 1
		}
		r.YourIndex = &yi
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListLeaderboard returns entries ordered by elo DESC, with optional limit and offset.
func (s *Store) ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	if s == nil || s.pool == nil {
		return []LeaderboardEntry{}, nil
	}
	limit, offset = clampPage(limit, offset)
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, elo, wins, losses, draws
		FROM player_ratings
		ORDER BY elo DESC, user_id ASC
		LIMIT $1 OFFSET $2`,
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

// GetLeaderboardEntryByUserID returns one player's leaderboard entry by user_id, or (nil, nil) if not found.
func (s *Store) GetLeaderboardEntryByUserID(ctx context.Context, userID string) (*LeaderboardEntry, error) {
	if s == nil || s.pool == nil || userID == "" {
		return nil, nil
	}
	var e LeaderboardEntry
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, elo, wins, losses, draws
		FROM player_ratings
		WHERE user_id = $1`,
		userID).Scan(&e.UserID, &e.Elo, &e.Wins, &e.Losses, &e.Draws)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.IsBot = IsBot(e.UserID)
	return &e, nil
}
