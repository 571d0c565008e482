package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/lgr"
	"github.com/khaledhikmat/ws-go/service/store"
)

// Upgrader upgrades stats stream requests; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type errorResponse struct {
	Error string `json:"error"`
}

type createUserRequest struct {
	ExternalID model.UserIdentity `json:"externalId"`
	Email      string             `json:"email"`
}

type startRequest struct {
	User model.UserIdentity `json:"user"`
}

type stopResponse struct {
	Counters model.StatCounters `json:"counters"`
	Total    int64              `json:"total"`
	Error    string             `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		lgr.Logger.Error("failed to encode response", lgr.Err(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

var errNoStore = errors.New("statistics store is not configured")

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errNoStore)
		return false
	}
	return true
}

func (s *Server) listStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	ctx, cancel := s.storeCtx(r)
	defer cancel()

	stats, err := s.store.ListStats(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if stats == nil {
		stats = []model.WasteStatistics{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	ctx, cancel := s.storeCtx(r)
	defer cancel()

	stats, err := s.store.Stats(ctx, model.UserIdentity(r.PathValue("user")))
	switch {
	case errors.Is(err, store.ErrStatsNotFound), errors.Is(err, store.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, stats)
	}
}

func (s *Server) deleteStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	ctx, cancel := s.storeCtx(r)
	defer cancel()

	user := model.UserIdentity(r.PathValue("user"))
	err := s.store.DeleteStats(ctx, user)
	switch {
	case errors.Is(err, store.ErrStatsNotFound), errors.Is(err, store.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		lgr.Logger.Info("statistics deleted", slog.String("user", string(user)))
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	ctx, cancel := s.storeCtx(r)
	defer cancel()

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ExternalID.Anonymous() {
		writeError(w, http.StatusBadRequest, errors.New("externalId is required"))
		return
	}

	ctx, cancel := s.storeCtx(r)
	defer cancel()

	user, err := s.store.CreateUser(ctx, req.ExternalID, req.Email)
	switch {
	case errors.Is(err, store.ErrUserExists):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusCreated, user)
	}
}

func (s *Server) startDetection(w http.ResponseWriter, r *http.Request) {
	// An empty body starts an anonymous run.
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	status, err := s.controller.Start(req.User)
	switch {
	case errors.Is(err, ErrAgentRunning):
		writeJSON(w, http.StatusConflict, status)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusAccepted, status)
	}
}

func (s *Server) stopDetection(w http.ResponseWriter, _ *http.Request) {
	counters, err := s.controller.Stop()
	if errors.Is(err, ErrAgentNotRunning) {
		writeError(w, http.StatusConflict, err)
		return
	}

	resp := stopResponse{Counters: counters, Total: counters.Total()}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) detectionStatus(w http.ResponseWriter, _ *http.Request) {
	status, ok := s.controller.Status()
	if !ok {
		writeError(w, http.StatusNotFound, ErrAgentNotRunning)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// statsSocket streams StatsUpdate messages for ?uid= until either side goes away.
func (s *Server) statsSocket(w http.ResponseWriter, r *http.Request) {
	if s.pubsub == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("stats fan-out is not configured"))
		return
	}
	user := model.UserIdentity(r.URL.Query().Get("uid"))

	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		lgr.Logger.Error("websocket upgrade error", lgr.Err(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := s.pubsub.Subscribe(ctx, user)
	if err != nil {
		lgr.Logger.Error("stats subscription failed", slog.String("user", string(user)), lgr.Err(err))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"))
		conn.Close()
		return
	}

	if !s.hub.Register(conn, user) {
		conn.Close()
		return
	}
	defer s.hub.Unregister(conn)

	// The read side only watches for the peer going away or the hub closing the socket.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					lgr.Logger.Debug("stats client read ended", lgr.Err(err))
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				lgr.Logger.Warn("failed to push stats update", slog.String("user", string(user)), lgr.Err(err))
				return
			}
		}
	}
}
