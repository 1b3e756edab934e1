package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"triple-triad-server/auth"
	"triple-triad-server/game"
	"triple-triad-server/matcherrors"
	"triple-triad-server/matchmaking"
	"triple-triad-server/storage"
)

// maxBodyBytes bounds request bodies; every request here is a few small fields.
const maxBodyBytes = 4096

// Handler holds dependencies for API handlers.
type Handler struct {
	Registry *matchmaking.Registry
	Store    storage.MatchStore // nil without a database
	Auth     *auth.Verifier     // nil when auth is disabled
}

// NewHandler creates a new API handler with the given dependencies.
func NewHandler(reg *matchmaking.Registry, store storage.MatchStore, verifier *auth.Verifier) *Handler {
	return &Handler{
		Registry: reg,
		Store:    store,
		Auth:     verifier,
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/game/cards", h.Cards)
	mux.HandleFunc("POST /api/game/match", h.CreateMatch)
	mux.HandleFunc("GET /api/game/matches/waiting", h.WaitingMatches)
	mux.HandleFunc("POST /api/game/match/{id}/join", h.JoinMatch)
	mux.HandleFunc("GET /api/game/match/{id}", h.GetMatch)
	mux.HandleFunc("GET /api/game/match/{id}/hand/{playerId}", h.GetHand)
	mux.HandleFunc("POST /api/game/match/{id}/play", h.PlayCard)
	mux.HandleFunc("POST /api/game/quickmatch", h.QuickMatch)
	mux.HandleFunc("GET /api/history", h.History)
	mux.HandleFunc("GET /api/leaderboard", h.Leaderboard)
	mux.HandleFunc("GET /healthz", h.Health)
}

// CORS sets CORS headers on the response. It reports true when the request
// was a preflight and has been answered.
func CORS(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

// WithCORS answers preflights and adds CORS headers to every response of next.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CORS(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MatchResponse is returned by create, join and quick match.
type MatchResponse struct {
	Match      game.MatchView `json:"match"`
	PlayerHand []game.Card    `json:"playerHand"`
}

type createMatchRequest struct {
	PlayerID   string  `json:"playerId"`
	OpponentID *string `json:"opponentId"`
}

type playerRequest struct {
	PlayerID string `json:"playerId"`
}

type playCardRequest struct {
	PlayerID string `json:"playerId"`
	CardID   int    `json:"cardId"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

// Cards returns the whole catalog ordered by id.
func (h *Handler) Cards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Registry.Catalog().All())
}

// CreateMatch creates a waiting match, or an active one when opponentId is set.
func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.authorize(w, r, req.PlayerID) {
		return
	}
	opponent := ""
	if req.OpponentID != nil {
		opponent = *req.OpponentID
	}
	res, err := h.Registry.CreateMatch(r.Context(), req.PlayerID, opponent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, matchResponse(res))
}

// WaitingMatches lists matches waiting for a second player, oldest first.
func (h *Handler) WaitingMatches(w http.ResponseWriter, r *http.Request) {
	waiting := h.Registry.ListWaiting()
	out := make([]game.MatchView, 0, len(waiting))
	for _, s := range waiting {
		out = append(out, game.BuildMatchView(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// JoinMatch seats the caller as player2.
func (h *Handler) JoinMatch(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.authorize(w, r, req.PlayerID) {
		return
	}
	res, err := h.Registry.JoinMatch(r.Context(), r.PathValue("id"), req.PlayerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse(res))
}

// GetMatch returns the match and its placements.
func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	details, err := h.Registry.GetMatch(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// GetHand returns the cards a player still holds. Only that player may see them.
func (h *Handler) GetHand(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("playerId")
	if !h.authorize(w, r, playerID) {
		return
	}
	hand, err := h.Registry.GetHand(r.PathValue("id"), playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hand)
}

// PlayCard plays one card and returns the PlayResult.
func (h *Handler) PlayCard(w http.ResponseWriter, r *http.Request) {
	var req playCardRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.authorize(w, r, req.PlayerID) {
		return
	}
	res, err := h.Registry.PlayCard(r.Context(), r.PathValue("id"), req.PlayerID, req.CardID, req.X, req.Y)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// QuickMatch joins the oldest waiting match or opens a new one.
func (h *Handler) QuickMatch(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.authorize(w, r, req.PlayerID) {
		return
	}
	res, err := h.Registry.QuickMatch(r.Context(), req.PlayerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse(res))
}

// Health reports that the server is up.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// History returns the game history for the authenticated user.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	list := []storage.GameRecord{}
	if h.Store != nil {
		list, err = h.Store.ListByUserID(r.Context(), userID)
		if err != nil {
			slog.Error("ListByUserID failed", "tag", "api", "err", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to load history"})
			return
		}
	}
	writeJSON(w, http.StatusOK, list)
}

// LeaderboardResponse is the JSON structure for /api/leaderboard.
type LeaderboardResponse struct {
	Entries          []storage.LeaderboardEntry `json:"entries"`
	CurrentUserEntry *storage.LeaderboardEntry  `json:"current_user_entry"`
}

// Leaderboard returns the global leaderboard with optional current user entry.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	entries := []storage.LeaderboardEntry{}
	if h.Store != nil {
		var err error
		entries, err = h.Store.ListLeaderboard(r.Context(), limit, offset)
		if err != nil {
			slog.Error("ListLeaderboard failed", "tag", "api", "err", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to load leaderboard"})
			return
		}
	}

	var currentUserEntry *storage.LeaderboardEntry
	if authUserID, err := h.userID(r); err == nil && h.Store != nil {
		cur, err := h.Store.GetLeaderboardEntryByUserID(r.Context(), authUserID)
		if err != nil {
			slog.Warn("GetLeaderboardEntryByUserID failed", "tag", "api", "err", err)
		} else if cur != nil {
			inTop := false
			for i := range entries {
				if entries[i].UserID == authUserID {
					entries[i].IsCurrentUser = true
					inTop = true
					break
				}
			}
			if !inTop {
				cur.IsCurrentUser = true
				currentUserEntry = cur
			}
		}
	}

	writeJSON(w, http.StatusOK, LeaderboardResponse{Entries: entries, CurrentUserEntry: currentUserEntry})
}

// userID identifies the caller. Without auth the ?playerId= query parameter is trusted.
func (h *Handler) userID(r *http.Request) (string, error) {
	if h.Auth.Enabled() {
		return h.Auth.FromRequest(r)
	}
	if id := r.URL.Query().Get("playerId"); id != "" {
		return id, nil
	}
	return "", matcherrors.ErrInvalidPlayer
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, playerID string) bool {
	if err := h.Auth.Authorize(r, playerID); err != nil {
		writeError(w, err)
		return false
	}
	return true
}

func matchResponse(res matchmaking.MatchResult) MatchResponse {
	return MatchResponse{Match: game.BuildMatchView(res.Match), PlayerHand: res.Hand}
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, matcherrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, matcherrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, matcherrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, matcherrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, matcherrors.ErrStateConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "tag", "api", "err", err)
	}
	writeJSON(w, status, errorBody{Error: matcherrors.Message(err)})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "tag", "api", "err", err)
	}
}
