package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cast"

	"github.com/pushchain/validator-trust/trustClient/errors"
)

const maxAttemptsLimit = 500

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug().Err(err).Msg("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleValidators handles GET /api/v1/validators
func (s *Server) handleValidators(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, QueryResponse{
		Data:        s.client.KnownValidators(),
		LastFetched: s.client.LastFetched(),
	})
}

// handleChosen handles GET /api/v1/validators/chosen
func (s *Server) handleChosen(w http.ResponseWriter, r *http.Request) {
	chosen := s.client.ChosenValidators()
	s.writeJSON(w, http.StatusOK, QueryResponse{
		Data:        chosen,
		LastFetched: chosen.UpdatedAt,
	})
}

// handleSources handles GET /api/v1/sources
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, QueryResponse{
		Data:        s.client.Schedules(),
		LastFetched: s.client.LastFetched(),
	})
}

// handleAddSource handles POST /api/v1/sources with {"param": "<create param>"}
func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req AddSourceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Param) == "" {
		s.writeError(w, http.StatusBadRequest, "param is required")
		return
	}

	id, err := s.client.AddSource(req.Param)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.IsSourceError(err, errors.ErrCodeValidation) || errors.IsSourceError(err, errors.ErrCodeParse) {
			status = http.StatusBadRequest
		}
		s.logger.Warn().Err(err).Str("param", req.Param).Msg("failed to add source")
		s.writeError(w, status, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, QueryResponse{
		Data:        SourceAccepted{SourceID: id},
		LastFetched: s.client.LastFetched(),
	})
}

// handleRemoveSource handles DELETE /api/v1/sources/{id}
func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	found, err := s.client.RemoveSource(id)
	if err != nil {
		s.logger.Error().Err(err).Str("source_id", id).Msg("failed to remove source")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("source %s not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRefreshSource handles POST /api/v1/sources/{id}/refresh
func (s *Server) handleRefreshSource(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.client.RefreshSource(id) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("source %s not found", id))
		return
	}
	s.writeJSON(w, http.StatusAccepted, QueryResponse{
		Data:        SourceAccepted{SourceID: id},
		LastFetched: s.client.LastFetched(),
	})
}

// handleAttempts handles GET /api/v1/sources/{id}/attempts?limit=<n>
func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAttemptsLimit)
	}

	attempts, err := s.client.RecentAttempts(id, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("source_id", id).Msg("failed to query attempts")
		s.writeError(w, http.StatusInternalServerError, "failed to query attempts")
		return
	}

	var last time.Time
	if len(attempts) > 0 {
		last = attempts[0].StartedAt
	}
	s.writeJSON(w, http.StatusOK, QueryResponse{Data: attempts, LastFetched: last})
}
