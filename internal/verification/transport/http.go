// Package transport provides HTTP handlers for the verification domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/contraforge/internal/storage"
	"github.com/pendergraft/contraforge/internal/verification/domain"
)

// Service defines the verification service interface for HTTP transport.
type Service interface {
	Verify(ctx context.Context, req domain.VerifyRequest) (*domain.Session, error)
	Status(ctx context.Context, network, guid string) (*domain.Session, error)
	Networks() map[string]int
}

// Recorder persists finished sessions. It is optional.
type Recorder interface {
	RecordVerification(ctx context.Context, v *storage.Verification) error
	ListVerifications(ctx context.Context, filter storage.VerificationFilter, pagination storage.PaginationParams) (*storage.PaginatedResult[storage.Verification], error)
}

// Handler handles HTTP requests for verification.
type Handler struct {
	svc      Service
	recorder Recorder
	logger   *slog.Logger
}

// NewHandler creates a new verification HTTP handler. recorder may be nil.
func NewHandler(svc Service, recorder Recorder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, recorder: recorder, logger: logger}
}

// RegisterRoutes registers the verification routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/verify", h.handleVerify)
	r.Get("/verify/{guid}", h.handleStatus)
	r.Get("/verifications", h.handleList)
	r.Get("/networks", h.handleNetworks)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	var req VerifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	domainReq := req.ToDomain()
	sess, err := h.svc.Verify(r.Context(), domainReq)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.record(r.Context(), sess, domainReq.CompilerVersion)
	writeJSON(w, sessionStatus(sess), sess)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	guid := chi.URLParam(r, "guid")
	network := r.URL.Query().Get("network")

	sess, err := h.svc.Status(r.Context(), network, guid)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.recordRecheck(r.Context(), sess)
	writeJSON(w, sessionStatus(sess), sess)
}

// recordRecheck appends the settled outcome of a re-checked session to the
// history of the submission it belongs to. A status poll only knows the guid,
// so the address and contract come from the earlier record.
func (h *Handler) recordRecheck(ctx context.Context, sess *domain.Session) {
	if h.recorder == nil || !sess.State.Terminal() {
		return
	}
	prev, err := h.recorder.ListVerifications(ctx,
		storage.VerificationFilter{GUID: sess.GUID, Network: sess.Network},
		storage.PaginationParams{Limit: 1},
	)
	if err != nil {
		h.logger.Warn("looking up verification", "guid", sess.GUID, "error", err)
		return
	}
	if len(prev.Data) == 0 {
		return
	}
	last := prev.Data[0]
	if last.State == string(sess.State) {
		return
	}
	sess.Address = last.Address
	sess.ContractName = last.ContractName
	h.record(ctx, sess, last.CompilerVersion)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Verification history is not enabled")
		return
	}

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

	result, err := h.recorder.ListVerifications(r.Context(),
		storage.VerificationFilter{Address: q.Get("address"), Network: q.Get("network")},
		storage.PaginationParams{Limit: limit, Cursor: q.Get("cursor")},
	)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCursor) {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid cursor")
			return
		}
		h.logger.Error("listing verifications", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list verifications")
		return
	}

	resp := ListVerificationsResponse{
		Data:       make([]VerificationRecord, 0, len(result.Data)),
		HasMore:    result.HasMore,
		NextCursor: result.NextCursor,
	}
	for _, v := range result.Data {
		resp.Data = append(resp.Data, toRecord(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleNetworks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NetworksResponse{Networks: h.svc.Networks()})
}

// record stores a finished session. History is best effort and never fails the request.
func (h *Handler) record(ctx context.Context, sess *domain.Session, compilerVersion string) {
	if h.recorder == nil || !sess.State.Terminal() {
		return
	}
	rec := &storage.Verification{
		GUID:            sess.GUID,
		Network:         sess.Network,
		ChainID:         int64(sess.ChainID),
		Address:         sess.Address,
		ContractName:    sess.ContractName,
		CompilerVersion: compilerVersion,
		State:           string(sess.State),
		Message:         sess.Message,
		Attempts:        sess.Attempts,
	}
	if err := h.recorder.RecordVerification(context.WithoutCancel(ctx), rec); err != nil {
		h.logger.Warn("recording verification", "address", sess.Address, "error", err)
	}
}

// sessionStatus maps a terminal session to an HTTP status.
// Timed out sessions are accepted: the explorer may still finish, and
// callers can re-check with GET /verify/{guid}.
func sessionStatus(sess *domain.Session) int {
	switch sess.State {
	case domain.StateVerified:
		return http.StatusOK
	case domain.StateFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusAccepted
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrUnknownNetwork):
		writeError(w, http.StatusBadRequest, "UNKNOWN_NETWORK", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "CANCELLED", "Verification was interrupted")
	default:
		h.logger.Error("verification failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify contract")
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
