package handlers

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"donato/backend/internal/donation"
	"donato/backend/internal/http/middleware"
	"donato/backend/internal/integrations/negdi"
	"donato/backend/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	msgMissingTransaction = "Missing transaction information from payment gateway."
	msgInvalidSignature   = "Payment processing error: Invalid signature from payment gateway."
	msgPersistence        = "Error updating the contribution. Contact support."
	msgOrderUnavailable   = "We could not start your payment right now. Please try again later."
	msgRateLimited        = "Too many payment attempts. Please wait a minute and try again."
)

type contributeForm struct {
	Email  string `validate:"required,email,max=254"`
	Amount string `validate:"required,max=16"`
}

type contributeView struct {
	Error    string
	Email    string
	Amount   string
	Currency string
	Min      string
	Max      string
}

type errorView struct {
	Message   string
	Reference string
}

type failedView struct {
	Reason string
}

type confirmationView struct {
	Amount      string
	Currency    string
	OrderNumber string
	Token       string
	QRDataURI   template.URL
	QRURL       string
}

// phase selects the wording of gateway errors for the step that failed.
type phase int

const (
	phaseStart phase = iota
	phaseConfirm
)

// Index renders the landing page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, h.loggerForRequest(r), http.StatusOK, pageIndex, nil)
}

// Favicon serves the embedded icon.
func (h *Handler) Favicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/x-icon")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(faviconICO)
}

// ContributeForm renders the empty contribution form.
func (h *Handler) ContributeForm(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, h.loggerForRequest(r), http.StatusOK, pageContribute, h.contributeView("", "", ""))
}

// Contribute validates the form, starts a gateway order and redirects the donor to pay.
func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)

	if !h.limiter.Allow(clientIP(r)) {
		logger.Warn("contribute", "status", "rate_limited", "ip", clientIP(r))
		h.pages.render(w, logger, http.StatusTooManyRequests, pageError, errorView{Message: msgRateLimited})
		return
	}

	if err := r.ParseForm(); err != nil {
		h.pages.render(w, logger, http.StatusBadRequest, pageContribute, h.contributeView("Invalid form submission.", "", ""))
		return
	}
	form := contributeForm{
		Email:  strings.TrimSpace(r.PostForm.Get("email")),
		Amount: strings.TrimSpace(r.PostForm.Get("contribution_amount")),
	}
	amount, problem := h.validateContribution(form)
	if problem != "" {
		logger.Warn("contribute", "status", "invalid_request", "problem", problem)
		h.pages.render(w, logger, http.StatusBadRequest, pageContribute, h.contributeView(problem, form.Email, form.Amount))
		return
	}

	sid, ok := middleware.SessionIDFromContext(r.Context())
	if !ok {
		logger.Error("contribute", "status", "no_session")
		h.pages.render(w, logger, http.StatusInternalServerError, pageError, errorView{Message: "An unexpected error occurred. Please try again later."})
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	res, err := h.service.Start(ctx, donation.StartRequest{
		Email:     form.Email,
		Amount:    amount,
		ReturnURL: h.publicBaseURL(r) + "/payment_confirmation",
	})
	if err != nil {
		h.handleDonationError(logger, w, "contribute", phaseStart, err)
		return
	}

	h.pending.Put(sid, res.Pending)
	logger.Info("contribute", "status", "redirect_to_gateway", "order_number", res.Pending.OrderNumber)
	http.Redirect(w, r, res.RedirectURL, http.StatusSeeOther)
}

// PaymentConfirmation handles the gateway return and shows the token or the failure.
func (h *Handler) PaymentConfirmation(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	query := r.URL.Query()

	sid, _ := middleware.SessionIDFromContext(r.Context())
	var pending *models.PendingOrder
	if order, ok := h.pending.Get(sid); ok {
		pending = &order
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	res, err := h.service.Confirm(ctx, donation.ConfirmRequest{
		TransactionID: query.Get("tranid"),
		CheckID:       query.Get("checkid"),
		Pending:       pending,
	})
	if err != nil {
		h.handleDonationError(logger, w, "payment_confirmation", phaseConfirm, err)
		return
	}

	if res.Settles(pending) {
		h.pending.Consume(sid)
	} else if pending != nil {
		logger.Warn("payment_confirmation", "status", "pending_kept", "session_order", pending.OrderNumber, "gateway_order", res.OrderNumber)
	}
	if res.Outcome == donation.OutcomeRejected {
		logger.Info("payment_confirmation", "status", "rejected", "gateway_status", res.GatewayStatus)
		h.pages.render(w, logger, http.StatusOK, pageFailed, failedView{Reason: res.Reason})
		return
	}

	c := res.Contribution
	logger.Info("payment_confirmation", "status", "approved", "order_number", c.OrderNumber, "replayed", res.Replayed)
	h.pages.render(w, logger, http.StatusOK, pageConfirmation, confirmationView{
		Amount:      c.Amount.StringFixed(2),
		Currency:    c.Currency,
		OrderNumber: c.OrderNumber,
		Token:       c.Token,
		QRDataURI:   template.URL(donation.QRDataURI(res.QRPNG)),
		QRURL:       c.QRURL,
	})
}

// PaymentFailed renders the generic failure page.
func (h *Handler) PaymentFailed(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, h.loggerForRequest(r), http.StatusOK, pageFailed, failedView{})
}

func (h *Handler) validateContribution(form contributeForm) (decimal.Decimal, string) {
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Field() == "Email" {
			return decimal.Zero, "Please enter a valid email address."
		}
		return decimal.Zero, "Please enter a contribution amount."
	}
	amount, err := decimal.NewFromString(form.Amount)
	if err != nil {
		return decimal.Zero, "Please enter a valid amount."
	}
	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, "Amounts can have at most two decimal places."
	}
	if !amount.IsPositive() {
		return decimal.Zero, "The amount must be greater than zero."
	}
	if h.cfg != nil {
		min, max := h.cfg.Contribution.Min, h.cfg.Contribution.Max
		if amount.LessThan(min) || amount.GreaterThan(max) {
			return decimal.Zero, "The amount must be between " + min.StringFixed(2) + " and " + max.StringFixed(2) + "."
		}
	}
	return amount, ""
}

func (h *Handler) contributeView(problem, email, amount string) contributeView {
	view := contributeView{Error: problem, Email: email, Amount: amount, Currency: "USD"}
	if h.cfg != nil {
		view.Currency = h.cfg.Negdi.Currency
		view.Min = h.cfg.Contribution.Min.StringFixed(2)
		view.Max = h.cfg.Contribution.Max.StringFixed(2)
	}
	return view
}

func (h *Handler) handleDonationError(logger *slog.Logger, w http.ResponseWriter, action string, p phase, err error) {
	var persistErr *donation.PersistenceError
	switch {
	case errors.Is(err, donation.ErrMissingTransaction):
		logger.Warn(action, "status", "missing_params")
		h.pages.render(w, logger, http.StatusBadRequest, pageError, errorView{Message: msgMissingTransaction})
	case errors.Is(err, donation.ErrInvalidAmount):
		logger.Warn(action, "status", "invalid_amount", "error", err)
		h.pages.render(w, logger, http.StatusBadRequest, pageError, errorView{Message: "The contribution amount is not valid."})
	case errors.Is(err, donation.ErrOrderNumberUnavailable):
		logger.Error(action, "status", "order_number_unavailable", "error", err)
		h.pages.render(w, logger, http.StatusServiceUnavailable, pageError, errorView{Message: msgOrderUnavailable})
	case errors.Is(err, donation.ErrInvalidSignature):
		logger.Warn(action, "status", "invalid_signature", "error", err)
		h.pages.render(w, logger, http.StatusBadGateway, pageError, errorView{Message: msgInvalidSignature})
	case negdi.IsNetwork(err):
		logger.Error(action, "status", "gateway_network_error", "error", err)
		msg := "Network error during payment. Please try again later."
		if p == phaseConfirm {
			msg = "Network error during payment verification. Please try again later."
		}
		h.pages.render(w, logger, http.StatusBadGateway, pageError, errorView{Message: msg})
	case negdi.IsProtocol(err):
		logger.Error(action, "status", "gateway_protocol_error", "error", err)
		msg := "Payment processing error: Could not retrieve payment URL."
		if p == phaseConfirm {
			msg = "Payment processing error: Could not retrieve payment status."
		}
		h.pages.render(w, logger, http.StatusBadGateway, pageError, errorView{Message: msg})
	case errors.As(err, &persistErr):
		logger.Error(action, "status", "persistence_error", "tranid", persistErr.TransactionID, "order_number", persistErr.OrderNumber, "error", err)
		h.pages.render(w, logger, http.StatusInternalServerError, pageError, errorView{Message: msgPersistence, Reference: persistErr.TransactionID})
	default:
		logger.Error(action, "status", "internal_error", "error", err)
		msg := "An unexpected error occurred. Please try again later."
		if p == phaseConfirm {
			msg = "An unexpected error occurred during payment verification. Please try again later."
		}
		h.pages.render(w, logger, http.StatusInternalServerError, pageError, errorView{Message: msg})
	}
}
