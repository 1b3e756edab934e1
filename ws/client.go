package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"triple-triad-server/matcherrors"
	"triple-triad-server/matchmaking"
	"triple-triad-server/wsutil"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client is a middleman between the websocket connection and the hub.
// It observes every match it has joined.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	// UserID is set by a successful auth message. Only ReadPump touches it.
	UserID string
}

// Notify queues ev for this connection. It never blocks: a full buffer drops
// the message.
func (c *Client) Notify(ev matchmaking.Event) {
	data, err := encodeEvent(ev)
	if err != nil {
		slog.Error("failed to encode event", "tag", "ws", "event", fmt.Sprintf("%T", ev), "err", err)
		return
	}
	wsutil.SafeSend(c.Send, data)
}

// ReadPump pumps messages from the websocket connection to the hub.
// It runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read error", "tag", "ws", "err", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket connection.
// It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError("", "Invalid message format.")
		return
	}

	switch envelope.Type {
	case TypeAuth:
		c.handleAuth(envelope.Raw)
	case TypeJoinMatch:
		c.handleJoinMatch(envelope.Raw)
	case TypeLeaveMatch:
		c.handleLeaveMatch(envelope.Raw)
	case TypePlayCard:
		c.handlePlayCard(envelope.Raw)
	case TypeRequestMatchStatus:
		c.handleRequestMatchStatus(envelope.Raw)
	default:
		c.sendError("", "Unknown message type: "+envelope.Type)
	}
}

func (c *Client) handleAuth(raw json.RawMessage) {
	var msg AuthMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("", "Invalid auth message.")
		return
	}
	if !c.Hub.Auth.Enabled() {
		c.sendError("", "Server auth not configured.")
		return
	}
	userID, err := c.Hub.Auth.Verify(msg.Token)
	if err != nil {
		slog.Info("auth rejected", "tag", "ws", "err", err)
		c.sendError("", matcherrors.Message(err))
		return
	}
	c.UserID = userID
	c.send(AuthOKMsg{Type: TypeAuthOK, UserID: userID})
}

// handleJoinMatch subscribes this connection to a match and replies with its status.
func (c *Client) handleJoinMatch(raw json.RawMessage) {
	var msg MatchMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("", "Invalid join_match message.")
		return
	}
	if err := c.Hub.Registry.Subscribe(msg.MatchID, c); err != nil {
		c.reportError(msg.MatchID, err)
		return
	}
	c.sendStatus(msg.MatchID)
}

func (c *Client) handleLeaveMatch(raw json.RawMessage) {
	var msg MatchMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("", "Invalid leave_match message.")
		return
	}
	if err := c.Hub.Registry.Unsubscribe(msg.MatchID, c); err != nil {
		c.reportError(msg.MatchID, err)
	}
}

func (c *Client) handlePlayCard(raw json.RawMessage) {
	var msg PlayCardMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("", "Invalid play_card message.")
		return
	}
	if c.Hub.Auth.Enabled() {
		if c.UserID == "" {
			c.reportError(msg.MatchID, matcherrors.ErrInvalidToken)
			return
		}
		if c.UserID != msg.PlayerID {
			c.reportError(msg.MatchID, matcherrors.ErrForbidden)
			return
		}
	}
	// Success is broadcast as card_played to every subscriber of the match.
	_, err := c.Hub.Registry.PlayCard(c.Hub.ctx, msg.MatchID, msg.PlayerID, msg.CardID, msg.X, msg.Y)
	if err != nil {
		c.reportError(msg.MatchID, err)
	}
}

func (c *Client) handleRequestMatchStatus(raw json.RawMessage) {
	var msg MatchMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("", "Invalid request_match_status message.")
		return
	}
	c.sendStatus(msg.MatchID)
}

func (c *Client) sendStatus(matchID string) {
	details, err := c.Hub.Registry.GetMatch(matchID)
	if err != nil {
		c.reportError(matchID, err)
		return
	}
	c.send(MatchStatusMsg{Type: TypeMatchStatus, MatchDetails: details})
}

// reportError delivers err to this client only, as an ErrorEvent.
func (c *Client) reportError(matchID string, err error) {
	if !errors.Is(err, matcherrors.ErrNotFound) && !errors.Is(err, matcherrors.ErrValidation) &&
		!errors.Is(err, matcherrors.ErrStateConflict) && !errors.Is(err, matcherrors.ErrUnauthorized) {
		slog.Error("request failed", "tag", "ws", "match", matchID, "err", err)
	}
	c.Notify(matchmaking.ErrorEvent{MatchID: matchID, Message: matcherrors.Message(err)})
}

func (c *Client) sendError(matchID, message string) {
	c.Notify(matchmaking.ErrorEvent{MatchID: matchID, Message: message})
}

func (c *Client) send(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to encode message", "tag", "ws", "err", err)
		return
	}
	wsutil.SafeSend(c.Send, data)
}
