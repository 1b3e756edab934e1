package ws

import (
	"encoding/json"
	"time"

	"triple-triad-server/game"
	"triple-triad-server/matchmaking"
)

// InboundEnvelope is the generic envelope for all client-to-server messages.
// The Type field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture the raw payload.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(data)
	return nil
}

// Inbound message types.
const (
	TypeAuth               = "auth"
	TypeJoinMatch          = "join_match"
	TypeLeaveMatch         = "leave_match"
	TypePlayCard           = "play_card"
	TypeRequestMatchStatus = "request_match_status"
)

// Outbound message types.
const (
	TypeMatchJoined   = "match_joined"
	TypeCardPlayed    = "card_played"
	TypeGameCompleted = "game_completed"
	TypeMatchStatus   = "match_status"
	TypeError         = "error"
	TypeAuthOK        = "auth_ok"
)

// --- Client-to-Server message payloads ---

// AuthMsg carries a bearer JWT. It is required before play_card when auth is enabled.
type AuthMsg struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// MatchMsg names a match; used by join_match, leave_match and request_match_status.
type MatchMsg struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId"`
}

// PlayCardMsg plays a card as PlayerID.
type PlayCardMsg struct {
	Type     string `json:"type"`
	MatchID  string `json:"matchId"`
	PlayerID string `json:"playerId"`
	CardID   int    `json:"cardId"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

// --- Server-to-Client messages ---

// ErrorMsg is sent only to the client whose request failed.
type ErrorMsg struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId,omitempty"`
	Message string `json:"message"`
}

// AuthOKMsg confirms a successful auth message.
type AuthOKMsg struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// MatchJoinedMsg tells subscribers that the match has two players.
type MatchJoinedMsg struct {
	Type     string         `json:"type"`
	MatchID  string         `json:"matchId"`
	PlayerID string         `json:"playerId"`
	Match    game.MatchView `json:"match"`
}

// CardPlayedMsg carries the PlayResult fields at the top level.
type CardPlayedMsg struct {
	Type string `json:"type"`
	game.PlayResult
}

// GameCompletedMsg follows the card_played that filled the board.
type GameCompletedMsg struct {
	Type         string    `json:"type"`
	MatchID      string    `json:"matchId"`
	WinnerID     *string   `json:"winnerId"`
	Player1Score int       `json:"player1Score"`
	Player2Score int       `json:"player2Score"`
	CompletedAt  time.Time `json:"completedAt"`
}

// MatchStatusMsg answers join_match and request_match_status.
type MatchStatusMsg struct {
	Type string `json:"type"`
	matchmaking.MatchDetails
}

// encodeEvent converts a registry event to its wire message.
func encodeEvent(ev matchmaking.Event) ([]byte, error) {
	var msg any
	switch ev := ev.(type) {
	case matchmaking.MatchJoined:
		msg = MatchJoinedMsg{Type: TypeMatchJoined, MatchID: ev.MatchID, PlayerID: ev.PlayerID, Match: ev.Match}
	case matchmaking.CardPlayed:
		msg = CardPlayedMsg{Type: TypeCardPlayed, PlayResult: ev.Result}
	case matchmaking.GameCompleted:
		msg = GameCompletedMsg{
			Type:         TypeGameCompleted,
			MatchID:      ev.MatchID,
			WinnerID:     ev.WinnerID,
			Player1Score: ev.Player1Score,
			Player2Score: ev.Player2Score,
			CompletedAt:  ev.CompletedAt,
		}
	case matchmaking.ErrorEvent:
		msg = ErrorMsg{Type: TypeError, MatchID: ev.MatchID, Message: ev.Message}
	}
	return json.Marshal(msg)
}
