package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

type errorView struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	st, err := s.ledger.Status(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) contributors(w http.ResponseWriter, r *http.Request) {
	roster, err := s.ledger.Roster(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

// eventLog returns the event log, optionally filtered by ?kind= and limited
// to the last ?limit= entries.
func (s *Server) eventLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorView{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	events, err := s.events.Events(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	kind := r.URL.Query().Get("kind")
	out := make([]types.Event, 0, len(events))
	for _, e := range events {
		if kind == "" || e.Kind == kind {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	writeJSON(w, http.StatusOK, out)
}

// fail maps a ledger or store error to a response.
func (s *Server) fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	view := errorView{Error: err.Error()}
	if errors.Is(err, types.ErrNotInitialized) {
		code = http.StatusConflict
		if kind := types.KindOf(err); kind != nil {
			view.Kind = kind.Error()
		}
	} else {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, code, view)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
