package matchmaking

import (
	"time"

	"triple-triad-server/game"
)

// Event is one of MatchJoined, CardPlayed, GameCompleted or ErrorEvent.
// The set is closed: only this package can add variants.
type Event interface {
	EventMatchID() string
	isEvent()
}

// Observer receives the events of the matches it subscribed to.
// Notify is called while the match is locked, so it must not block
// and must not call back into the Registry.
type Observer interface {
	Notify(ev Event)
}

// MatchJoined is emitted when a waiting match becomes active.
type MatchJoined struct {
	MatchID  string
	PlayerID string // the player who joined
	Match    game.MatchView
}

// CardPlayed is emitted after every successful play.
type CardPlayed struct {
	Result game.PlayResult
}

// GameCompleted follows the CardPlayed that filled the board.
type GameCompleted struct {
	MatchID      string
	WinnerID     *string // nil on a draw
	Player1Score int
	Player2Score int
	CompletedAt  time.Time
}

// ErrorEvent reports a failed request. It is delivered to the requester only.
type ErrorEvent struct {
	MatchID string
	Message string
}

func (e MatchJoined) EventMatchID() string   { return e.MatchID }
func (e CardPlayed) EventMatchID() string    { return e.Result.MatchID }
func (e GameCompleted) EventMatchID() string { return e.MatchID }
func (e ErrorEvent) EventMatchID() string    { return e.MatchID }

func (MatchJoined) isEvent()   {}
func (CardPlayed) isEvent()    {}
func (GameCompleted) isEvent() {}
func (ErrorEvent) isEvent()    {}
