package server

import (
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"chronicle/internal/api"
)

const defaultBlobMediaType = "application/octet-stream"

func (s *Server) handleBlobMeta(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	meta, err := s.blobs.ReadMeta(r.Context(), id)
	if err != nil {
		s.writeAPIError(w, r, classifyBlobError(err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.BlobMetaResponse{ID: id, Name: meta.Name})
}

func (s *Server) handleBlobData(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	meta, err := s.blobs.ReadMeta(r.Context(), id)
	if err != nil {
		s.writeAPIError(w, r, classifyBlobError(err))
		return
	}
	data, err := s.blobs.ReadData(r.Context(), id)
	if err != nil {
		s.writeAPIError(w, r, classifyBlobError(err))
		return
	}

	w.Header().Set("Content-Type", blobMediaType(meta.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if meta.Name != "" {
		if disposition := mime.FormatMediaType("attachment", map[string]string{"filename": meta.Name}); disposition != "" {
			w.Header().Set("Content-Disposition", disposition)
		}
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log().Debug("write blob response", "id", id, "error", err)
	}
}

func (s *Server) handleAdminRemoveBlob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if err := s.blobs.Remove(r.Context(), id); err != nil {
		s.writeAPIError(w, r, classifyBlobError(err))
		return
	}
	s.log().Info("blob removed", "id", id, "remote_addr", r.RemoteAddr)
	s.writeJSON(w, http.StatusOK, api.RemoveBlobResponse{ID: id, Removed: true})
}

func blobMediaType(name string) string {
	if mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); mediaType != "" {
		return mediaType
	}
	return defaultBlobMediaType
}
