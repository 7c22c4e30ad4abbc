package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"archdiagram/internal/generator"
	"archdiagram/internal/logger"
	"archdiagram/pkg"

	"github.com/bytedance/sonic"
)

const (
	maxBodyBytes    = 1 << 20
	maxHistoryLimit = 100

	detailEmptyPrompt   = "Prompt cannot be empty."
	detailInvalidFile   = "Agent failed to generate a valid diagram file."
	detailInternalError = "An internal error occurred: "
)

// DiagramGenerator produces a diagram file for a prompt
type DiagramGenerator interface {
	Generate(ctx context.Context, prompt string) (*generator.Result, error)
}

// HistoryReader lists recent generation requests
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]pkg.GenerationRecord, error)
}

// GenerateRequest is the body of POST /diagrams/generate
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Handler serves the diagram API
type Handler struct {
	gen     DiagramGenerator
	history HistoryReader
}

// NewHandler creates a new API handler. history may be nil.
func NewHandler(gen DiagramGenerator, history HistoryReader) *Handler {
	return &Handler{gen: gen, history: history}
}

// GenerateDiagram turns a prompt into a PNG. The rendered file is removed
// once its bytes are in memory.
func (h *Handler) GenerateDiagram(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Request body is too large.")
		return
	}

	var req GenerateRequest
	if err := sonic.Unmarshal(body, &req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, detailEmptyPrompt)
		return
	}

	res, err := h.gen.Generate(r.Context(), req.Prompt)
	if err != nil {
		switch {
		case errors.Is(err, generator.ErrEmptyInput):
			writeError(w, http.StatusBadRequest, detailEmptyPrompt)
		case errors.Is(err, generator.ErrDriverIncomplete):
			writeError(w, http.StatusInternalServerError, detailInvalidFile)
		default:
			writeError(w, http.StatusInternalServerError, detailInternalError+err.Error())
		}
		return
	}

	data, err := readAndRemove(res.Path)
	if err != nil {
		logger.Error().Err(err).Str("path", res.Path).Msg("Failed to read diagram file")
		writeError(w, http.StatusInternalServerError, detailInvalidFile)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Diagram-Session", res.SessionID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Warn().Err(err).Msg("Failed to write diagram response")
	}
}

// Health reports that the service is up
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// History lists recent generation requests, newest first
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, []pkg.GenerationRecord{})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	recs, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read history")
		writeError(w, http.StatusInternalServerError, detailInternalError+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func readAndRemove(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, errors.New("diagram path is not a regular file")
	}

	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to remove diagram file")
		}
	}()
	return os.ReadFile(path)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := sonic.Marshal(data)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode JSON")
		http.Error(w, `{"detail":"An internal error occurred: encoding response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
