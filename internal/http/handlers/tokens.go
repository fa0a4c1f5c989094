package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"donato/backend/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type tokenStatusResponse struct {
	Valid       bool   `json:"valid"`
	OrderNumber string `json:"orderNumber"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	CreatedAt   string `json:"createdAt"`
}

// TokenStatus lets a redeeming party check a scanned contribution token.
func (h *Handler) TokenStatus(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if _, err := uuid.Parse(token); err != nil {
		writeError(w, http.StatusBadRequest, "invalid token")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	c, err := h.tokens.GetContributionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrContributionNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		logger.Error("token_status", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	writeJSON(w, http.StatusOK, tokenStatusResponse{
		Valid:       true,
		OrderNumber: c.OrderNumber,
		Amount:      c.Amount.StringFixed(2),
		Currency:    c.Currency,
		CreatedAt:   c.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// Healthz pings the database.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := h.withTimeout(r.Context())
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.loggerForRequest(r).Error("healthz", "status", "db_unreachable", "error", err)
			writeError(w, http.StatusServiceUnavailable, "db unreachable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
