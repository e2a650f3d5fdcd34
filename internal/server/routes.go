package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and metrics.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Ledger reads.
	mux.HandleFunc("GET /v1/kinds", s.handleKinds)
	mux.HandleFunc("GET /v1/kinds/{kind}/rows", s.handleRows)
	mux.HandleFunc("GET /v1/kinds/{kind}/rows/{id}", s.handleRow)
	mux.HandleFunc("GET /v1/kinds/{kind}/history", s.handleHistory)

	// Blobs.
	mux.HandleFunc("GET /v1/blobs/{id}", s.handleBlobData)
	mux.HandleFunc("GET /v1/blobs/{id}/meta", s.handleBlobMeta)

	// Admin.
	mux.Handle("DELETE /v1/admin/blobs/{id}", s.withAdmin(http.HandlerFunc(s.handleAdminRemoveBlob)))

	return mux
}
