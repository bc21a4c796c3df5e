package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// DataResponse wraps every JSON payload.
type DataResponse struct {
	Data []string `json:"data"`
}

// ErrorResponse is the JSON body for read failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Web UI template data types

// WebListData is the data for the session list page.
type WebListData struct {
	IDs []string
}

// WebSessionData is the data for a single session page.
type WebSessionData struct {
	ID            string
	Found         bool
	Lines         []string
	RefreshMillis int64
}

// HTML

func (s *Server) handleWebList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List()
	if err != nil {
		s.logger.Error().Err(err).Msg("List sessions failed")
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}

	s.render(w, "sessions.html", WebListData{IDs: ids})
}

func (s *Server) handleWebSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lines, found, err := s.store.ReadLines(id)
	if err != nil {
		s.logger.Error().Err(err).Str("session", id).Msg("Read session failed")
		http.Error(w, "Failed to read session", http.StatusInternalServerError)
		return
	}

	// Unknown sessions still answer 200 with a placeholder.
	s.render(w, "session.html", WebSessionData{
		ID:            id,
		Found:         found,
		Lines:         lines,
		RefreshMillis: RefreshInterval.Milliseconds(),
	})
}

// JSON

func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List()
	if err != nil {
		s.logger.Error().Err(err).Msg("List sessions failed")
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	writeJSON(w, http.StatusOK, DataResponse{Data: ids})
}

func (s *Server) handleAPISession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lines, found, err := s.store.ReadLines(id)
	if err != nil {
		s.logger.Error().Err(err).Str("session", id).Msg("Read session failed")
		writeError(w, http.StatusInternalServerError, "Failed to read session")
		return
	}
	if !found {
		lines = []string{}
	}

	writeJSON(w, http.StatusOK, DataResponse{Data: lines})
}

// Raw text

// handleRawList writes every id back to back with no separator, the format
// existing consumers of this route expect.
func (s *Server) handleRawList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List()
	if err != nil {
		s.logger.Error().Err(err).Msg("List sessions failed")
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}

	writeText(w, strings.Join(ids, ""))
}

func (s *Server) handleRawSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lines, _, err := s.store.ReadLines(id)
	if err != nil {
		s.logger.Error().Err(err).Str("session", id).Msg("Read session failed")
		http.Error(w, "Failed to read session", http.StatusInternalServerError)
		return
	}

	writeText(w, strings.Join(lines, "\n"))
}

// Helper functions

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error().Err(err).Str("template", name).Msg("Template execution failed")
		http.Error(w, "Template execution error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(buf.String()))
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
