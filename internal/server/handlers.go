package server

import (
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/rewind/internal/models"
	"github.com/hyperjump/rewind/internal/search"
)

// ConfirmWipe must be sent as {"confirm": ConfirmWipe} to wipe.
const ConfirmWipe = "wipe"

type searchRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
	Limit int    `json:"limit"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tr, err := models.ParseTimeRange(req.From, req.To)
	if err != nil {
		s.respondClientOrServerError(w, err)
		return
	}
	query := models.SearchQuery{Query: req.Query, Mode: models.SearchMode(req.Mode), Limit: req.Limit, Range: tr}
	s.logger.Debug("search request", zap.String("mode", req.Mode), zap.Int("limit", req.Limit))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.respondClientOrServerError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tr, err := models.ParseTimeRange(q.Get("from"), q.Get("to"))
	if err != nil {
		s.respondClientOrServerError(w, err)
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	results, err := s.engine.Recent(r.Context(), tr, offset, limit)
	if err != nil {
		s.respondClientOrServerError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results, "total": len(results)})
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.engine.Get(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		s.logger.Error("get record failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecordImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.engine.Get(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.archive == nil || res.Thumbnail == "" {
		s.respondError(w, http.StatusNotFound, "no image retained for record")
		return
	}
	path, err := s.archive.Resolve(res.Thumbnail)
	if errors.Is(err, fs.ErrNotExist) {
		s.respondError(w, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleCaptureState(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"state": string(s.capture.State())})
}

type captureRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleCaptureControl(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var err error
	switch req.Action {
	case "pause":
		err = s.capture.Pause()
	case "resume":
		err = s.capture.Resume()
	default:
		s.respondError(w, http.StatusBadRequest, `action must be "pause" or "resume"`)
		return
	}
	if err != nil {
		s.logger.Error("capture control failed", zap.String("action", req.Action), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("capture control", zap.String("action", req.Action))
	s.respondJSON(w, http.StatusOK, map[string]string{"state": string(s.capture.State())})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.status.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

type wipeRequest struct {
	Confirm string `json:"confirm"`
}

func (s *Server) handleWipe(w http.ResponseWriter, r *http.Request) {
	var req wipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Confirm != ConfirmWipe {
		s.respondError(w, http.StatusBadRequest, `wipe requires {"confirm":"wipe"}`)
		return
	}
	report, err := s.wiper.Wipe(r.Context())
	if err != nil {
		s.logger.Error("wipe failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondClientOrServerError answers 400 for invalid queries (logged at debug only) and 500 otherwise.
func (s *Server) respondClientOrServerError(w http.ResponseWriter, err error) {
	if search.IsClientError(err) {
		s.logger.Debug("rejected query", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("search failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
