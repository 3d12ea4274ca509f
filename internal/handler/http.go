// Package handler exposes the HTTP API: authentication, lobby, rooms, game
// play and statistics.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dilemma-game/internal/auth"
	"github.com/dilemma-game/internal/directory"
	"github.com/dilemma-game/internal/domain"
	"github.com/dilemma-game/internal/game"
	"github.com/dilemma-game/internal/room"
	"github.com/dilemma-game/internal/session"
	"github.com/dilemma-game/internal/stats"
	"github.com/dilemma-game/internal/websocket"
)

// Handler provides HTTP handlers for the game API
type Handler struct {
	auth      *auth.Service
	directory *directory.Directory
	rooms     *room.Manager
	games     *game.Engine
	sessions  *session.Manager
	stats     *stats.Repository
	hub       *websocket.Hub
	logger    *slog.Logger
}

// NewHandler creates a new HTTP handler. stats may be nil when the durable
// statistics backend is disabled.
func NewHandler(
	authService *auth.Service,
	dir *directory.Directory,
	rooms *room.Manager,
	games *game.Engine,
	sessions *session.Manager,
	statsRepo *stats.Repository,
	hub *websocket.Hub,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		auth:      authService,
		directory: dir,
		rooms:     rooms,
		games:     games,
		sessions:  sessions,
		stats:     statsRepo,
		hub:       hub,
		logger:    logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
		})

		r.Route("/players", func(r chi.Router) {
			r.Get("/online", h.ListOnlinePlayers)
			r.Route("/{playerID}", func(r chi.Router) {
				r.Get("/", h.GetPlayer)
				r.Post("/heartbeat", h.Heartbeat)
				r.Get("/stats", h.GetPlayerStats)
				r.Get("/history", h.GetPlayerHistory)
			})
		})

		r.Route("/rooms", func(r chi.Router) {
			r.Post("/", h.CreateRoom)
			r.Get("/", h.ListRooms)

			r.Route("/{roomID}", func(r chi.Router) {
				r.Get("/", h.GetRoom)
				r.Post("/join", h.JoinRoom)
				r.Post("/leave", h.LeaveRoom)
				r.Post("/ready", h.SetReady)
				r.Post("/start", h.StartGame)
			})
		})

		r.Route("/games", func(r chi.Router) {
			r.Route("/{gameID}", func(r chi.Router) {
				r.Get("/", h.GetGame)
				r.Post("/sessions", h.OpenSession)
				r.Post("/answers", h.SubmitAnswer)
				r.Get("/results", h.GetResults)
				r.Get("/rounds/{round}/results", h.GetRoundResults)
			})
		})

		r.Get("/stats/top", h.GetTopPlayers)
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeDomainError maps a domain error onto an HTTP status. Anything
// unrecognised is logged and hidden behind a generic 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, domain.ErrUsernameTaken):
		h.writeError(w, http.StatusConflict, err)
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case domain.IsValidationError(err):
		h.writeError(w, http.StatusBadRequest, err)
	case domain.IsStateError(err):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrVersionConflict):
		h.writeError(w, http.StatusConflict, err)
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles player registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	id, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    map[string]string{"player_id": id},
	})
}

// Login handles player login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	id, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, map[string]string{"player_id": id})
}

type playerRequest struct {
	PlayerID string `json:"player_id"`
}

// Logout handles player logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.auth.Logout(r.Context(), req.PlayerID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "logged_out"})
}

// ListOnlinePlayers returns all live players, optionally excluding one id
func (h *Handler) ListOnlinePlayers(w http.ResponseWriter, r *http.Request) {
	exclude := r.URL.Query().Get("exclude")

	players, err := h.directory.ListOnline(r.Context(), exclude)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, players)
}

// GetPlayer returns a player's public profile
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	player, err := h.directory.FindByID(r.Context(), playerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	player.PasswordHash = ""

	h.writeSuccess(w, player)
}

// Heartbeat refreshes a player's liveness timestamp
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.directory.Heartbeat(r.Context(), playerID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "alive"})
}

// GetPlayerStats returns a player's durable statistics
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if h.stats == nil {
		h.writeError(w, http.StatusServiceUnavailable, errors.New("statistics backend disabled"))
		return
	}

	playerStats, err := h.stats.GetPlayerStats(r.Context(), playerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, playerStats)
}

// GetPlayerHistory lists a player's games, newest first
func (h *Handler) GetPlayerHistory(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	history, err := h.games.History(r.Context(), playerID, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, history)
}

type createRoomRequest struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Name       string `json:"name,omitempty"`
}

// CreateRoom handles room creation
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	roomID, err := h.rooms.Create(r.Context(), req.PlayerID, req.PlayerName, req.Name)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    map[string]string{"room_id": roomID},
	})
}

// ListRooms returns waiting rooms with a free slot
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	listings, err := h.rooms.ListAvailable(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, listings)
}

// GetRoom returns a room by ID
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if roomID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	roomDoc, err := h.rooms.Get(r.Context(), roomID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, roomDoc)
}

type joinRoomRequest struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// JoinRoom adds a player to a waiting room
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.rooms.Join(r.Context(), roomID, req.PlayerID, req.PlayerName); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "joined"})
}

// LeaveRoom removes a player from a room
func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	var req playerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.rooms.Leave(r.Context(), roomID, req.PlayerID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "left"})
}

type readyRequest struct {
	PlayerID string `json:"player_id"`
	Ready    bool   `json:"ready"`
}

// SetReady toggles a player's readiness flag
func (h *Handler) SetReady(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	var req readyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.rooms.SetReady(r.Context(), roomID, req.PlayerID, req.Ready); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, map[string]bool{"ready": req.Ready})
}

// StartGame activates the room and creates the game
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	var req playerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	gameID, err := h.rooms.Start(r.Context(), roomID, req.PlayerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	// The room watcher picks the status flip up off the store and
	// broadcasts it; no direct push needed here.
	h.writeSuccess(w, map[string]string{"game_id": gameID})
}

// GetGame returns the game meta document
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	gameDoc, err := h.games.Get(r.Context(), gameID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, gameDoc)
}

// OpenSession starts (or resumes) the server-side loop for one player of a
// game
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	var req playerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	sess, err := h.sessions.Open(r.Context(), gameID, req.PlayerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, map[string]string{"state": string(sess.State())})
}

type answerRequest struct {
	PlayerID string `json:"player_id"`
	Choice   string `json:"choice"`
}

// SubmitAnswer records the player's choice for the game's current question
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	choice, err := domain.ParseChoice(req.Choice)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	sess, err := h.sessions.Open(r.Context(), gameID, req.PlayerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if err := sess.SubmitAnswer(r.Context(), choice); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, map[string]string{"state": string(sess.State())})
}

// GetResults returns the terminal aggregation for a game
func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	summary, err := h.games.Results(r.Context(), gameID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, summary)
}

// GetRoundResults returns the resolved results of one round
func (h *Handler) GetRoundResults(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	round, err := strconv.Atoi(chi.URLParam(r, "round"))
	if gameID == "" || err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	results, err := h.games.RoundResults(r.Context(), gameID, round)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, results)
}

// GetTopPlayers returns the highest-scoring players
func (h *Handler) GetTopPlayers(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.writeError(w, http.StatusServiceUnavailable, errors.New("statistics backend disabled"))
		return
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	top, err := h.stats.TopPlayers(r.Context(), limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, top)
}
