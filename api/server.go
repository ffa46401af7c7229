package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/skip2/go-qrcode"

	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/service"
)

const (
	qrSize    = 320
	maxQRSize = 1024
)

// Server represents the REST API server
type Server struct {
	service service.GameService
	ws      http.Handler
	router  *mux.Router
	logger  *slog.Logger
}

// NewServer creates a new API server. ws serves /ws and may be nil.
func NewServer(gameService service.GameService, ws http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		service: gameService,
		ws:      ws,
		router:  mux.NewRouter(),
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	api := s.router.PathPrefix("/api").Subrouter()

	// Matchmaking
	api.HandleFunc("/join", s.handleJoin).Methods("POST")
	api.HandleFunc("/connections/{id}", s.handleLeave).Methods("DELETE")

	// Game operations
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/rooms/{id}/fleet", s.handlePlaceFleet).Methods("POST")
	api.HandleFunc("/rooms/{id}/fire", s.handleFire).Methods("POST")

	// Results and server info
	api.HandleFunc("/results", s.handleListResults).Methods("GET")
	api.HandleFunc("/results/{id}", s.handleGetResult).Methods("GET")
	api.HandleFunc("/rules", s.handleRules).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/qr", s.handleQR).Methods("GET")

	// WebSocket
	if s.ws != nil {
		s.router.Handle("/ws", s.ws)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondServiceError maps a service error to its status and code
func respondServiceError(w http.ResponseWriter, err error) {
	code := service.ErrorCode(err)
	respondError(w, statusFor(code), code, err.Error())
}

func statusFor(code string) int {
	switch code {
	case engine.CodeUnknownRoom, engine.CodeUnknownPlayer, service.CodeResultNotFound, service.CodeNotSeated:
		return http.StatusNotFound
	case engine.CodeNotYourTurn, engine.CodeNotInState, engine.CodeAlreadyPlaced,
		engine.CodeAlreadySeated, engine.CodeRoomFull:
		return http.StatusConflict
	case engine.CodeInvalidPlacement:
		return http.StatusUnprocessableEntity
	case service.CodeBadRequest:
		return http.StatusBadRequest
	case service.CodeCancelled:
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		respondError(w, http.StatusBadRequest, service.CodeBadRequest, "request body required")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, service.CodeBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}

// Matchmaking Handlers

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConnectionID string `json:"connection_id,omitempty"`
		Username     string `json:"username,omitempty"`
	}

	// An empty body joins with a generated identity
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, service.CodeBadRequest, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
	}

	joined, err := s.service.Join(r.Context(), req.ConnectionID, req.Username)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if joined.Waiting {
		status = http.StatusCreated
	}
	respondJSON(w, status, joined)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	connectionID := mux.Vars(r)["id"]

	if err := s.service.Leave(r.Context(), connectionID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Connection %s left", connectionID),
	})
}

// Game Operation Handlers

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.service.ListRooms(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Filter by state when requested
	if state := r.URL.Query().Get("state"); state != "" {
		filtered := rooms[:0]
		for _, room := range rooms {
			if string(room.State) == state {
				filtered = append(filtered, room)
			}
		}
		rooms = filtered
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]
	viewer := r.URL.Query().Get("connection_id")

	snap, err := s.service.GetRoom(r.Context(), roomID, viewer)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePlaceFleet(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	var req struct {
		ConnectionID string     `json:"connection_id"`
		Ships        [][]string `json:"ships"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ConnectionID == "" {
		respondError(w, http.StatusBadRequest, service.CodeBadRequest, "connection_id is required")
		return
	}

	snap, err := s.service.PlaceFleet(r.Context(), roomID, req.ConnectionID, req.Ships)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleFire(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	var req struct {
		ConnectionID string `json:"connection_id"`
		Target       string `json:"target"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ConnectionID == "" {
		respondError(w, http.StatusBadRequest, service.CodeBadRequest, "connection_id is required")
		return
	}

	shot, err := s.service.Fire(r.Context(), roomID, req.ConnectionID, req.Target)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, shot)
}

// Result and Server Handlers

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.service.ListResults(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Apply limit if specified
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(results) {
			results = results[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.GetResult(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.service.Rules(r.Context()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// handleQR renders a PNG QR code of the play URL so a second player can join
// from a phone. ?url= overrides the URL derived from the request.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		target = scheme + "://" + r.Host + "/api/rules"
	}

	size := qrSize
	if sizeStr := r.URL.Query().Get("size"); sizeStr != "" {
		n, err := strconv.Atoi(sizeStr)
		if err != nil || n < 64 || n > maxQRSize {
			respondError(w, http.StatusBadRequest, service.CodeBadRequest, fmt.Sprintf("size must be between 64 and %d", maxQRSize))
			return
		}
		size = n
	}

	png, err := qrcode.Encode(target, qrcode.Medium, size)
	if err != nil {
		s.logger.Error("qr generation failed", "url", target, "error", err)
		respondError(w, http.StatusInternalServerError, engine.CodeInternal, "qr generation failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
