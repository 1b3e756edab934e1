package storage

import (
	"math"
	"strings"
)

const (
	EloK           = 32
	InitialElo     = 1000
	AIUserIDPrefix = "ai:"
)

// computeEloUpdates returns new ratings (newR0, newR1) given current ratings and winnerIdx (0, 1, or -1 for draw).
func computeEloUpdates(r0, r1 int, winnerIdx int) (newR0, newR1 int) {
	var score0, score1 float64
	switch winnerIdx {
	case 0:
		score0, score1 = 1, 0
	case 1:
		score0, score1 = 0, 1
	default:
		score0, score1 = 0.5, 0.5
	}
	e0 := 1 / (1 + math.Pow(10, float64(r1-r0)/400))
	e1 := 1 - e0
	newR0 = max(r0+int(math.Round(EloK*(score0-e0))), 0)
	newR1 = max(r1+int(math.Round(EloK*(score1-e1))), 0)
	return newR0, newR1
}

// tally is one player_ratings row.
type tally struct{ elo, wins, losses, draws int }

// applyResult bumps the win/loss/draw counters of both players for winnerIdx.
func applyResult(t0, t1 *tally, winnerIdx int) {
	switch winnerIdx {
	case 0:
		t0.wins++
		t1.losses++
	case 1:
		t0.losses++
		t1.wins++
	default:
		t0.draws++
		t1.draws++
	}
}

// IsBot reports whether userID belongs to an AI seat.
func IsBot(userID string) bool {
	return strings.HasPrefix(userID, AIUserIDPrefix)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
