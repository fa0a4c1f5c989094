package handlers

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"donato/backend/internal/config"
	"donato/backend/internal/donation"
	"donato/backend/internal/http/middleware"
	"donato/backend/internal/models"
	"donato/backend/internal/rate"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// TokenLookup resolves issued contribution tokens.
type TokenLookup interface {
	GetContributionByToken(ctx context.Context, token string) (models.Contribution, error)
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Service *donation.Service
	Pending *donation.PendingStore
	Tokens  TokenLookup
	DB      Pinger
	Limiter *rate.ClientLimiter
}

// Handler serves the donation pages and JSON endpoints.
type Handler struct {
	service   *donation.Service
	pending   *donation.PendingStore
	tokens    TokenLookup
	db        Pinger
	limiter   *rate.ClientLimiter
	pages     *pages
	cfg       *config.Config
	logger    *slog.Logger
	validator *validator.Validate
}

// New creates handler.
func New(deps Deps, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:   deps.Service,
		pending:   deps.Pending,
		tokens:    deps.Tokens,
		db:        deps.DB,
		limiter:   deps.Limiter,
		pages:     mustLoadPages(),
		cfg:       cfg,
		logger:    logger,
		validator: validator.New(),
	}
}

// Mount registers the donation routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/", h.Index)
	r.Get("/favicon.ico", h.Favicon)
	r.Get("/contribute", h.ContributeForm)
	r.Post("/contribute", h.Contribute)
	r.Get("/payment_confirmation", h.PaymentConfirmation)
	r.Get("/payment_failed", h.PaymentFailed)
	r.Get("/tokens/{token}", h.TokenStatus)
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := 30 * time.Second
	if h.cfg != nil && h.cfg.RequestTimeout > 0 {
		timeout = h.cfg.RequestTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (h *Handler) loggerForRequest(r *http.Request) *slog.Logger {
	logger := h.logger
	if logger == nil {
		return slog.Default()
	}
	if reqID := chimw.GetReqID(r.Context()); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if sid, ok := middleware.SessionIDFromContext(r.Context()); ok {
		logger = logger.With("session_id", sid)
	}
	return logger
}

// publicBaseURL prefers BASE_URL and falls back to the request's scheme and host.
func (h *Handler) publicBaseURL(r *http.Request) string {
	if h.cfg != nil && strings.TrimSpace(h.cfg.BaseURL) != "" {
		return strings.TrimRight(h.cfg.BaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = strings.ToLower(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
