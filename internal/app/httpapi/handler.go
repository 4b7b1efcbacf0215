// Package httpapi exposes the service over HTTP. Routing is a plain ServeMux
// with path-segment dispatch for the parameterized routes.
package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/openquant/tradehook/internal/app/services/accounts"
	"github.com/openquant/tradehook/internal/app/services/portfolio"
	"github.com/openquant/tradehook/internal/app/services/trading"
	"github.com/openquant/tradehook/internal/errors"
	"github.com/openquant/tradehook/internal/metrics"
	"github.com/openquant/tradehook/internal/middleware"
	"github.com/openquant/tradehook/pkg/logger"
)

// Handler wires the services into HTTP routes.
type Handler struct {
	trading   *trading.Service
	accounts  *accounts.Service
	portfolio *portfolio.Service
	poller    *portfolio.SnapshotPoller
	auth      *middleware.Authenticator
	metrics   *metrics.Metrics
	log       *logger.Logger

	webhookPassphrase string
}

// Config collects the handler dependencies.
type Config struct {
	Trading   *trading.Service
	Accounts  *accounts.Service
	Portfolio *portfolio.Service
	Poller    *portfolio.SnapshotPoller
	Auth      *middleware.Authenticator
	Metrics   *metrics.Metrics
	Logger    *logger.Logger

	// WebhookPassphrase doubles as the operator credential for token
	// issuance.
	WebhookPassphrase string
}

// New builds the handler.
func New(cfg Config) *Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{
		trading:           cfg.Trading,
		accounts:          cfg.Accounts,
		portfolio:         cfg.Portfolio,
		poller:            cfg.Poller,
		auth:              cfg.Auth,
		metrics:           cfg.Metrics,
		log:               log,
		webhookPassphrase: cfg.WebhookPassphrase,
	}
}

// Routes returns the mux with every route registered.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/webhook", h.handleWebhook)
	mux.HandleFunc("/auth/token", h.handleToken)

	mux.HandleFunc("/account/balance", h.handleBalance)
	mux.HandleFunc("/account/balance/history", h.handleBalanceHistory)
	mux.HandleFunc("/account/positions", h.handlePositions)
	mux.HandleFunc("/account/position/", h.handlePosition)

	mux.HandleFunc("/trades", h.handleTrades)

	mux.HandleFunc("/users", h.handleUsers)
	mux.HandleFunc("/users/", h.handleUserSubtree)

	mux.HandleFunc("/accounts/", h.handleAccountSubtree)

	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics.Handler())
	}
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, errors.MethodNotAllowed(r.Method))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, errors.MethodNotAllowed(r.Method))
		return
	}

	var payload trading.WebhookPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.trading.Execute(r.Context(), payload)
	if err != nil {
		h.observeOrder(string(payload.Action), "rejected")
		writeServiceError(w, err)
		return
	}

	h.observeOrder(string(payload.Action), "executed")
	h.portfolio.InvalidateBalance(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"trade":  result.Trade,
		"order":  result.Order,
	})
}

func (h *Handler) observeOrder(action, status string) {
	if h.metrics != nil {
		h.metrics.ObserveOrder(action, status)
	}
}

type tokenRequest struct {
	Passphrase string `json:"passphrase"`
	Subject    string `json:"subject"`
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, errors.MethodNotAllowed(r.Method))
		return
	}
	if h.auth == nil || !h.auth.Enabled() {
		writeError(w, errors.NotFound("token authentication is disabled"))
		return
	}

	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Passphrase != h.webhookPassphrase {
		writeError(w, errors.InvalidPassphrase())
		return
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "operator"
	}

	token, expiresAt, err := h.auth.Issue(subject)
	if err != nil {
		writeServiceError(w, errors.Internal("failed to issue token", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"token":      token,
		"expires_at": expiresAt.UTC(),
	})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, errors.MethodNotAllowed(r.Method))
		return
	}

	balance, err := h.portfolio.USDTBalance(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"balance": balance,
	})
}

func (h *Handler) handleBalanceHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, errors.MethodNotAllowed(r.Method))
		return
	}
	if h.poller == nil {
		writeError(w, errors.NotFound("balance history is not enabled"))
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, errors.Validation("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	snapshots, err := h.poller.History(r.Context(), "USDT", limit)
	if err != nil {
		writeServiceError(w, errors.Internal("failed to load balance history", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"snapshots": snapshots,
	})
}

func (h *Handler) handlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, errors.MethodNotAllowed(r.Method))
		return
	}

	positions, err := h.portfolio.OpenPositions(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"positions": positions,
	})
}

func (h *Handler) handlePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, errors.MethodNotAllowed(r.Method))
		return
	}

	symbol := strings.TrimPrefix(r.URL.Path, "/account/position/")
	if symbol == "" || strings.Contains(symbol, "/") {
		writeError(w, errors.NotFound("not found"))
		return
	}

	positions, err := h.portfolio.PositionInfo(r.Context(), symbol)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"positions": positions,
	})
}

func (h *Handler) handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, errors.MethodNotAllowed(r.Method))
		return
	}

	trades, err := h.trading.History(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"trades": trades,
	})
}
