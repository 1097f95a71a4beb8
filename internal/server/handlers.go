package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/seek/internal/finder"
	"github.com/hyperjump/seek/internal/models"
	"github.com/hyperjump/seek/internal/session"
	"github.com/hyperjump/seek/internal/storage"
)

const (
	defaultRecentLimit   = 20
	defaultSnapshotLimit = 20
)

type sessionResponse struct {
	ID    string        `json:"id"`
	State session.State `json:"state"`
}

type confirmRequest struct {
	Proceed bool `json:"proceed"`
}

type restoreRequest struct {
	SnapshotID string           `json:"snapshot_id,omitempty"`
	Snapshot   *models.Snapshot `json:"snapshot,omitempty"`
}

type selectRequest struct {
	Index int `json:"index"`
}

type outcomeResponse struct {
	Code              session.ResultCode `json:"code"`
	SelectedDirectory string             `json:"selected_directory,omitempty"`
	SnapshotID        string             `json:"snapshot_id,omitempty"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var in session.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("start session request", zap.Strings("terms", in.Terms), zap.Bool("voice", in.Voice), zap.String("directory", in.Directory))
	sess, state, err := s.sessions.Start(r.Context(), in)
	if err != nil {
		s.respondSessionError(w, "start session", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, sessionResponse{ID: sess.ID(), State: state})
}

func (s *Server) handleRestoreSession(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var (
		sess *session.Session
		err  error
	)
	switch {
	case req.Snapshot != nil:
		sess, err = s.sessions.Restore(r.Context(), req.Snapshot)
	case req.SnapshotID != "":
		sess, err = s.sessions.RestoreByID(r.Context(), req.SnapshotID)
	default:
		s.respondError(w, http.StatusBadRequest, "snapshot_id or snapshot is required")
		return
	}
	if err != nil {
		s.respondSessionError(w, "restore session", err)
		return
	}
	view, err := sess.View(r.Context())
	if err != nil {
		s.respondSessionError(w, "restore session", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, sessionResponse{ID: sess.ID(), State: view.State})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	view, err := sess.View(r.Context())
	if err != nil {
		s.respondSessionError(w, "get session", err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	state, err := sess.Confirm(r.Context(), req.Proceed)
	if err != nil {
		s.respondSessionError(w, "confirm", err)
		return
	}
	s.respondJSON(w, http.StatusOK, sessionResponse{ID: sess.ID(), State: state})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	cancelled, err := sess.Cancel(r.Context())
	if err != nil {
		s.respondSessionError(w, "cancel", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		s.respondSessionError(w, "snapshot", err)
		return
	}
	if r.URL.Query().Get("save") == "true" {
		if err := s.storage.SaveSnapshot(r.Context(), snap); err != nil {
			s.respondSessionError(w, "save snapshot", err)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	out, err := s.sessions.Select(r.Context(), id, req.Index)
	if err != nil {
		s.respondSessionError(w, "select", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toOutcomeResponse(out))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("close session request", zap.String("id", id))
	out, err := s.sessions.Close(r.Context(), id)
	if err != nil {
		s.respondSessionError(w, "close session", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toOutcomeResponse(out))
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limit(w, r, defaultSnapshotLimit)
	if !ok {
		return
	}
	snaps, err := s.storage.ListSnapshots(r.Context(), limit)
	if err != nil {
		s.respondSessionError(w, "list snapshots", err)
		return
	}
	type summary struct {
		ID        string    `json:"id"`
		Directory string    `json:"directory"`
		Query     string    `json:"query"`
		Results   int       `json:"results"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]summary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, summary{
			ID:        snap.ID,
			Directory: snap.Directory,
			Query:     snap.Query.String(),
			Results:   len(snap.Results),
			CreatedAt: snap.CreatedAt,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"snapshots": out})
}

func (s *Server) handleRecentQueries(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limit(w, r, defaultRecentLimit)
	if !ok {
		return
	}
	terms, err := s.storage.RecentQueries(r.Context(), r.URL.Query().Get("prefix"), limit)
	if err != nil {
		s.respondSessionError(w, "recent queries", err)
		return
	}
	if terms == nil {
		terms = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"queries": terms})
}

func (s *Server) handleClearRecentQueries(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.ClearRecentQueries(r.Context()); err != nil {
		s.respondSessionError(w, "clear recent queries", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recentCount, err := s.storage.CountRecentQueries(ctx)
	if err != nil {
		s.logger.Error("status: count recent queries failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	snapshotCount, err := s.storage.CountSnapshots(ctx)
	if err != nil {
		s.logger.Error("status: count snapshots failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"sessions":       s.sessions.Len(),
		"recent_queries": recentCount,
		"snapshots":      snapshotCount,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	if s.watch != nil {
		resp["watched_directories"] = s.watch.Roots()
	}

	configInfo := map[string]interface{}{}
	if s.config != nil {
		configInfo["database_path"] = s.config.Storage.DatabasePath
		configInfo["root_directory"] = s.config.Search.RootDirectory
		configInfo["min_term_length"] = s.config.Search.MinTermLength
		configInfo["batch_size"] = s.config.Search.BatchSize
		configInfo["max_sessions"] = s.config.Search.MaxSessions
		configInfo["persist_snapshots"] = s.config.Storage.PersistSnapshotsOrDefault()

		diskBytes, err := storage.DatabaseSizeBytes(s.config.Storage.DatabasePath)
		if err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondSessionError(w, "get session", err)
		return nil, false
	}
	return sess, true
}

func (s *Server) limit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return n, true
}

func toOutcomeResponse(out *session.Outcome) outcomeResponse {
	resp := outcomeResponse{Code: out.Code, SelectedDirectory: out.SelectedDirectory}
	if out.Snapshot != nil {
		resp.SnapshotID = out.Snapshot.ID
	}
	return resp
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, storage.ErrSnapshotNotFound),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmptyQuery),
		errors.Is(err, session.ErrInvalidSnapshot),
		errors.Is(err, session.ErrIndexOutOfRange),
		errors.Is(err, session.ErrNotNavigable),
		errors.Is(err, finder.ErrNotDirectory),
		errors.Is(err, filepath.ErrBadPattern):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotAwaitingConfirmation),
		errors.Is(err, session.ErrNoSearch):
		return http.StatusConflict
	case errors.Is(err, session.ErrTooManySessions),
		errors.Is(err, session.ErrSessionClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondSessionError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
