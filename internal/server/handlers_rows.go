package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"chronicle/internal/api"
	"chronicle/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	counts, err := s.reader.Counts(r.Context())
	if err != nil {
		s.writeAPIError(w, r, storeFailure(err))
		return
	}

	kinds := models.Kinds()
	resp := api.KindsResponse{Kinds: make([]api.KindInfo, 0, len(kinds))}
	for _, kind := range kinds {
		resp.Kinds = append(resp.Kinds, api.NewKindInfo(kind, counts[kind.Name]))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleRows serves getLatestN when limit is set and getAll otherwise.
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.pathKindOrError(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	rows, err := s.reader.LatestN(r.Context(), kind, limit)
	if err != nil {
		s.writeAPIError(w, r, classifyLedgerError(err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.RowsResponse{Kind: kind.Name, Rows: nonNilRows(rows)})
}

func (s *Server) handleRow(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.pathKindOrError(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)
	if err != nil || id <= 0 {
		s.writeAPIError(w, r, badRequestCode(fmt.Errorf("invalid row id"), ErrCodeInvalidID))
		return
	}

	row, err := s.reader.Get(r.Context(), kind, id)
	if err != nil {
		s.writeAPIError(w, r, classifyLedgerError(err))
		return
	}
	if row == nil {
		s.writeAPIError(w, r, notFoundCode(fmt.Errorf("%s row %d not found", kind.Name, id), ErrCodeRowNotFound))
		return
	}
	s.writeJSON(w, http.StatusOK, row)
}

// handleHistory serves getByNaturalKey. Singleton kinds take no key.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.pathKindOrError(w, r)
	if !ok {
		return
	}
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" && !kind.Singleton() {
		s.writeAPIError(w, r, badRequestCode(fmt.Errorf("key is required"), ErrCodeMissingRequired))
		return
	}

	rows, err := s.reader.History(r.Context(), kind, key)
	if err != nil {
		s.writeAPIError(w, r, classifyLedgerError(err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.RowsResponse{Kind: kind.Name, Key: key, Rows: nonNilRows(rows)})
}

func nonNilRows(rows []models.Row) []models.Row {
	if rows == nil {
		return []models.Row{}
	}
	return rows
}
