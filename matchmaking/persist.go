package matchmaking

import (
	"fmt"

	"triple-triad-server/game"
	"triple-triad-server/storage"
)

// toRecord flattens a match snapshot into its persisted rows.
func toRecord(s game.State) storage.MatchRecord {
	rec := storage.MatchRecord{
		ID:           s.ID,
		Player1ID:    s.Player1ID,
		Player2ID:    s.Player2ID,
		Status:       s.Status.String(),
		CurrentTurn:  s.CurrentTurn,
		Player1Score: s.Player1Score,
		Player2Score: s.Player2Score,
		WinnerID:     s.WinnerID,
		CreatedAt:    s.CreatedAt,
	}
	if !s.CompletedAt.IsZero() {
		t := s.CompletedAt
		rec.CompletedAt = &t
	}
	for _, p := range s.Placements {
		rec.Placements = append(rec.Placements, storage.PlacementRecord{
			X:             p.X,
			Y:             p.Y,
			CardID:        p.CardID,
			Owner:         p.Owner,
			OriginalOwner: p.OriginalOwner,
		})
	}
	for _, player := range []string{s.Player1ID, s.Player2ID} {
		if hand, ok := s.Hands[player]; ok && player != "" {
			rec.Hands = append(rec.Hands, storage.HandRecord{PlayerID: player, CardIDs: hand})
		}
	}
	return rec
}

// fromRecord is the inverse of toRecord. A seated player without hand rows
// has played every card and gets an empty hand.
func fromRecord(rec storage.MatchRecord) (game.State, error) {
	status, err := game.ParseStatus(rec.Status)
	if err != nil {
		return game.State{}, fmt.Errorf("match %s: %w", rec.ID, err)
	}
	s := game.State{
		ID:           rec.ID,
		Player1ID:    rec.Player1ID,
		Player2ID:    rec.Player2ID,
		Status:       status,
		CurrentTurn:  rec.CurrentTurn,
		Player1Score: rec.Player1Score,
		Player2Score: rec.Player2Score,
		WinnerID:     rec.WinnerID,
		CreatedAt:    rec.CreatedAt,
		Hands:        make(map[string][]int, 2),
	}
	if rec.CompletedAt != nil {
		s.CompletedAt = *rec.CompletedAt
	}
	for _, p := range rec.Placements {
		s.Placements = append(s.Placements, game.Placement{
			CardID:        p.CardID,
			Owner:         p.Owner,
			OriginalOwner: p.OriginalOwner,
			Coord:         game.Coord{X: p.X, Y: p.Y},
		})
	}
	for _, h := range rec.Hands {
		s.Hands[h.PlayerID] = h.CardIDs
	}
	for _, player := range []string{s.Player1ID, s.Player2ID} {
		if _, ok := s.Hands[player]; !ok && player != "" {
			s.Hands[player] = []int{}
		}
	}
	return s, nil
}
