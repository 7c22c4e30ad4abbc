package api

import "net/http"

// NewRouter registers the API routes and wraps them in the default middleware
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /diagrams/generate", h.GenerateDiagram)
	mux.HandleFunc("GET /diagrams/history", h.History)
	mux.HandleFunc("GET /health", h.Health)

	return Chain(mux, Logger, Recover)
}
