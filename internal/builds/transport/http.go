// Package transport provides HTTP handlers for the builds domain.
package transport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/contraforge/internal/builds/domain"
)

// Handler handles HTTP requests for builds.
type Handler struct {
	svc    domain.Service
	logger *slog.Logger
}

// NewHandler creates a new builds HTTP handler.
func NewHandler(svc domain.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes registers the toolchain routes. These spawn subprocesses
// and belong behind the rate limiter.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/compile", h.handleCompile)
	r.Post("/test", h.handleTest)
}

// RegisterReadRoutes registers the routes that do no toolchain work.
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Post("/compliance", h.handleCompliance)
	r.Get("/builds", h.handleList)
	r.Get("/builds/{id}", h.handleGet)
}

func (h *Handler) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req CompileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.svc.Compile(r.Context(), req.ToDomain())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleTest(w http.ResponseWriter, r *http.Request) {
	var req TestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	outcome, err := h.svc.RunTests(r.Context(), req.ToDomain())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleCompliance(w http.ResponseWriter, r *http.Request) {
	var req ComplianceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.ABI) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "abi is required")
		return
	}

	report, err := h.svc.Score(r.Context(), req.ABI)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 20
	if l := q.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	filter := domain.ListFilter{
		Kind:         q.Get("kind"),
		ContractName: q.Get("contract"),
	}
	if s := q.Get("success"); s != "" {
		success, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "success must be true or false")
			return
		}
		filter.Success = &success
	}

	result, err := h.svc.List(r.Context(), filter, domain.PaginationParams{Limit: limit, Cursor: q.Get("cursor")})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Build not found")
	case errors.Is(err, domain.ErrHistoryDisabled):
		writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Build history is not enabled")
	default:
		h.logger.Error("build request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// Helper functions

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
