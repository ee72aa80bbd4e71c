package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Lisboaa111/Nillion-Keychain/internal/pending"
	"github.com/Lisboaa111/Nillion-Keychain/internal/validation"
	"github.com/Lisboaa111/Nillion-Keychain/internal/wallet"
)

type handler struct {
	deps *Dependencies
}

func newHandler(deps *Dependencies) *handler {
	return &handler{deps: deps}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// walletError maps wallet sentinel errors to admin HTTP errors.
func walletError(w http.ResponseWriter, err error, logger *slog.Logger) {
	switch {
	case errors.Is(err, wallet.ErrNotInitialized):
		writeError(w, http.StatusConflict, "NOT_SETUP", "Wallet not setup")
	case errors.Is(err, wallet.ErrAlreadyInitialized):
		writeError(w, http.StatusConflict, "ALREADY_SETUP", "wallet already setup")
	case errors.Is(err, wallet.ErrWrongPassword):
		writeError(w, http.StatusUnauthorized, "WRONG_PASSWORD", "wrong password")
	case errors.Is(err, wallet.ErrLocked):
		writeError(w, http.StatusConflict, "LOCKED", "Wallet is locked. Please unlock your wallet first.")
	default:
		logger.Error("wallet operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	status := h.deps.Wallet.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"state": status.State.String(),
		"did":   status.DID,
	})
}

type passwordRequest struct {
	Password string `json:"password"`
}

type importRequest struct {
	Password   string `json:"password"`
	PrivateKey string `json:"privateKey"`
}

func (h *handler) setup(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "password required")
		return
	}
	if err := validation.Password(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	did, err := h.deps.Wallet.Setup(req.Password)
	if err != nil {
		walletError(w, err, h.deps.Logger)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"did": did})
}

func (h *handler) importKey(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "password and privateKey required")
		return
	}
	if err := validation.Password(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	if err := validation.PrivateKeyHex(req.PrivateKey); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	did, err := h.deps.Wallet.Import(req.Password, req.PrivateKey)
	if err != nil {
		walletError(w, err, h.deps.Logger)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"did": did})
}

func (h *handler) unlock(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "password required")
		return
	}

	if err := h.deps.Wallet.Unlock(req.Password); err != nil {
		walletError(w, err, h.deps.Logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": "unlocked"})
}

func (h *handler) lock(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Wallet.Lock(); err != nil {
		walletError(w, err, h.deps.Logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": "locked"})
}

func (h *handler) export(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "password required")
		return
	}

	privHex, err := h.deps.Wallet.ExportKey(req.Password)
	if err != nil {
		walletError(w, err, h.deps.Logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"privateKey": privHex})
}

func (h *handler) listSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.deps.Registry.List()
	if err != nil {
		h.deps.Logger.Error("failed to list sites", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": sites})
}

func (h *handler) removeSite(w http.ResponseWriter, r *http.Request) {
	origin, err := url.PathUnescape(chi.URLParam(r, "origin"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "origin required")
		return
	}
	if err := validation.Origin(origin); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	if err := h.deps.Registry.Remove(origin); err != nil {
		h.deps.Logger.Error("failed to remove site", "origin", origin, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listPending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"requests": h.deps.Pending.List()})
}

func (h *handler) getPending(w http.ResponseWriter, r *http.Request) {
	view, ok := h.deps.Pending.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// approve runs the vendor-storage side effect before resolving, through the
// same executor the popup uses. Execution failures still resolve approved
// with a failure result; only an unknown id is an error here.
func (h *handler) approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, ok := h.deps.Pending.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
		return
	}

	if err := h.deps.Executor.Approve(r.Context(), view); err != nil {
		if errors.Is(err, pending.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
			return
		}
		h.deps.Logger.Error("approval failed", "request_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "approved"})
}

func (h *handler) reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.deps.Executor.Reject(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "rejected"})
}

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.deps.Store.ListAudit(limit)
	if err != nil {
		h.deps.Logger.Error("failed to list audit entries", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
