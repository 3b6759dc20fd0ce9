// Package server exposes the game service over HTTP with a websocket push
// channel per game.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"battleship/internal/app"
	"battleship/internal/codec"
	"battleship/internal/digest"
	"battleship/internal/game"
)

const maxBody = 1 << 20

type Server struct {
	svc      *app.Service
	log      zerolog.Logger
	upgrader websocket.Upgrader

	// PingInterval keeps idle websocket connections alive.
	PingInterval time.Duration
	WriteTimeout time.Duration
}

func New(svc *app.Service, log zerolog.Logger) *Server {
	return &Server{
		svc: svc,
		log: log.With().Str("component", "http").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/health", s.handleHealth)
	mux.HandleFunc("/v1/rules", s.handleRules)

	// Fleet setup, before any game exists
	mux.HandleFunc("/v1/fleets/random", s.handleRandomFleet)
	mux.HandleFunc("/v1/fleets/place", s.handlePlaceShip)

	// Games
	mux.HandleFunc("/v1/games", s.handleGames)
	mux.HandleFunc("/v1/games/{id}", s.handleState)
	mux.HandleFunc("/v1/games/{id}/join", s.handleJoin)
	mux.HandleFunc("/v1/games/{id}/attack", s.handleAttack)
	mux.HandleFunc("/v1/games/{id}/view", s.handleView)
	mux.HandleFunc("/v1/games/{id}/ws", s.handleWS)
}

// Handler is the full middleware stack around a fresh mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Routes(mux)
	return WithCORS(s.withLogging(mux))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP: bad input 400, wrong moment
// 409, unknown game 404, everything else 500.
func statusFor(err error) int {
	if errors.Is(err, game.ErrNotFound) {
		return http.StatusNotFound
	}
	switch game.KindOf(err) {
	case game.KindValidation:
		return http.StatusBadRequest
	case game.KindState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, code, codec.ErrorBody{Error: "internal error"})
		return
	}
	writeJSON(w, code, codec.ErrorBodyFrom(err))
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, codec.ErrorBody{Error: msg})
}

// allow answers preflight and rejects other methods. It reports whether
// the handler should go on.
func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	if r.Method != method {
		w.Header().Set("Allow", method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "bad json")
		return false
	}
	return true
}

// === Health / Rules ===

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, codec.Health{Status: "ok"})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, codec.RulesResponse{Rules: s.svc.Rules()})
}

// === Fleets ===

func (s *Server) handleRandomFleet(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	f, err := s.svc.RandomFleet()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.NewFleetResponse(f))
}

func (s *Server) handlePlaceShip(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req codec.PlaceShipRequest
	if !decode(w, r, &req) {
		return
	}
	f, err := s.svc.PlaceShip(req.Fleet, req.ShipID, req.Origin, req.Orientation)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.NewFleetResponse(f))
}

// === Games ===

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleList(w, r)
	case http.MethodPost:
		s.handleCreate(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if st := r.URL.Query().Get("status"); st != "" && st != string(game.StatusWaiting) {
		badRequest(w, "only status=waiting can be listed")
		return
	}
	games, err := s.svc.ListWaiting(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.GamesResponse{Games: games})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req codec.CreateGameRequest
	if !decode(w, r, &req) {
		return
	}
	var (
		st  game.State
		err error
	)
	switch req.Opponent {
	case "":
		st, err = s.svc.StartGame(r.Context(), req.Player, req.Ships)
	case codec.OpponentAI:
		st, err = s.svc.StartAIGame(r.Context(), req.Player, req.Ships)
	default:
		badRequest(w, "unknown opponent "+req.Opponent)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/games/"+st.ID)
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req codec.JoinGameRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := s.svc.JoinGame(r.Context(), r.PathValue("id"), req.Player, req.Ships)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAttack(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req codec.AttackRequest
	if !decode(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	out, err := s.svc.Attack(r.Context(), id, req.Player, game.Coord{X: req.X, Y: req.Y})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.svc.State(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.AttackResponse{Outcome: out, State: st})
}

// handleState serves the public projection. Clients poll with
// If-None-Match and get 304 until something changes.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	st, err := s.svc.State(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tag := digest.ETag(st); tag != "" {
		w.Header().Set("ETag", tag)
		if r.Header.Get("If-None-Match") == tag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	player := game.PlayerID(r.URL.Query().Get("player"))
	v, err := s.svc.View(r.Context(), r.PathValue("id"), player)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// === Middleware ===

func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, If-None-Match")
		w.Header().Set("Access-Control-Expose-Headers", "ETag, Location")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
