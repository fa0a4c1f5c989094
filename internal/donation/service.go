package donation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"donato/backend/internal/integrations/negdi"
	"donato/backend/internal/models"

	"github.com/shopspring/decimal"
)

// Gateway creates and inquires orders.
type Gateway interface {
	CreateOrder(ctx context.Context, in negdi.CreateOrderRequest) (negdi.OrderResponse, error)
	InquireOrder(ctx context.Context, in negdi.InquiryRequest) (negdi.OrderResponse, error)
}

// SignatureVerifier checks an ordersign against the raw order bytes.
type SignatureVerifier interface {
	Verify(rawOrder []byte, signature string) error
}

// ContributionStore persists approved contributions. InsertContribution reports false
// and returns the stored row when the transaction was already recorded.
type ContributionStore interface {
	InsertContribution(ctx context.Context, c models.Contribution) (models.Contribution, bool, error)
	GetContributionByTransactionID(ctx context.Context, transactionID string) (models.Contribution, error)
}

// QRArchive stores a rendered QR image and returns its public URL.
type QRArchive interface {
	ArchiveQR(ctx context.Context, c models.Contribution, png []byte) (string, error)
}

// ReceiptSender emails the donor their token.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, c models.Contribution, png []byte) error
}

// Options wires a Service. Archive and Receipts are optional.
type Options struct {
	Gateway      Gateway
	Verifier     SignatureVerifier
	Store        ContributionStore
	OrderNumbers *OrderNumbers
	Archive      QRArchive
	Receipts     ReceiptSender
	Currency     string
	QRSize       int
	Logger       *slog.Logger
}

// Service runs the two halves of a donation: starting a gateway order and confirming it
// once the donor comes back.
type Service struct {
	gateway      Gateway
	verifier     SignatureVerifier
	store        ContributionStore
	orderNumbers *OrderNumbers
	archive      QRArchive
	receipts     ReceiptSender
	currency     string
	qrSize       int
	logger       *slog.Logger
}

// NewService creates service.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	currency := strings.ToUpper(strings.TrimSpace(opts.Currency))
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		gateway:      opts.Gateway,
		verifier:     opts.Verifier,
		store:        opts.Store,
		orderNumbers: opts.OrderNumbers,
		archive:      opts.Archive,
		receipts:     opts.Receipts,
		currency:     currency,
		qrSize:       opts.QRSize,
		logger:       logger,
	}
}

// StartRequest is a validated contribution form.
type StartRequest struct {
	Email     string
	Amount    decimal.Decimal
	ReturnURL string
}

// StartResult carries the gateway checkout URL and the order to keep in the session.
type StartResult struct {
	RedirectURL string
	Pending     models.PendingOrder
}

// Start reserves an order number, creates the gateway order and checks its signature.
// Nothing is persisted; the caller keeps Pending in the donor's session.
func (s *Service) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	if !req.Amount.IsPositive() {
		return StartResult{}, ErrInvalidAmount
	}
	orderNumber, err := s.orderNumbers.Next(ctx)
	if err != nil {
		return StartResult{}, err
	}
	logger := s.logger.With("order_number", orderNumber)

	resp, err := s.gateway.CreateOrder(ctx, negdi.CreateOrderRequest{
		Amount:      req.Amount,
		Currency:    s.currency,
		ReturnURL:   req.ReturnURL,
		OrderNumber: orderNumber,
	})
	if err != nil {
		return StartResult{}, err
	}
	if err := s.verifier.Verify(resp.RawOrder, resp.Signature); err != nil {
		logger.Warn("security_event", "event", "invalid_signature", "op", "create_order")
		return StartResult{}, fmt.Errorf("create order %s: %w", orderNumber, err)
	}

	return StartResult{
		RedirectURL: strings.TrimSpace(resp.Order.NegdiURL),
		Pending: models.PendingOrder{
			Email:       strings.TrimSpace(req.Email),
			OrderNumber: orderNumber,
			Amount:      req.Amount,
			Currency:    s.currency,
		},
	}, nil
}

// ConfirmRequest carries the gateway return parameters.
type ConfirmRequest struct {
	TransactionID string
	CheckID       string
	// Pending is the order the donor's session started, nil when the session lost it.
	Pending *models.PendingOrder
}

// Outcome is the terminal state of a confirmation.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// ConfirmResult describes a finished confirmation.
type ConfirmResult struct {
	Outcome       Outcome
	GatewayStatus string
	Reason        string
	// OrderNumber is the order the gateway confirmed or rejected, empty when it did not say.
	OrderNumber  string
	Contribution models.Contribution
	QRPNG        []byte
	// Replayed is set when the transaction had already been recorded.
	Replayed bool
}

// Settles reports whether the result closes the given pending order. A result for a
// different order leaves it in place for the donor's other checkout.
func (r ConfirmResult) Settles(pending *models.PendingOrder) bool {
	return pending != nil && pendingMatches(pending, r.OrderNumber)
}

// Confirm verifies a returning transaction with the gateway and, when approved, issues a
// token and records the contribution.
//
// AwaitingParams -> Inquiring -> SignatureCheck -> Approved|Rejected -> Persisted|Failed.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (ConfirmResult, error) {
	tranID := strings.TrimSpace(req.TransactionID)
	checkID := strings.TrimSpace(req.CheckID)
	if tranID == "" || checkID == "" {
		return ConfirmResult{}, ErrMissingTransaction
	}
	logger := s.logger.With("tranid", tranID)

	if existing, ok := s.lookupRecorded(ctx, tranID, checkID); ok {
		return s.replay(existing), nil
	}

	resp, err := s.gateway.InquireOrder(ctx, negdi.InquiryRequest{TransactionID: tranID, CheckID: checkID})
	if err != nil {
		return ConfirmResult{}, err
	}

	if err := s.verifier.Verify(resp.RawOrder, resp.Signature); err != nil {
		logger.Warn("security_event", "event", "invalid_signature", "op", "inquire_order")
		return ConfirmResult{}, fmt.Errorf("inquire order %s: %w", tranID, err)
	}

	status := strings.TrimSpace(resp.Order.Status)
	if !resp.IsApproved() {
		logger.Info("payment_not_approved", "gateway_status", status, "reason", resp.Order.Reason)
		return ConfirmResult{
			Outcome:       OutcomeRejected,
			GatewayStatus: status,
			Reason:        strings.TrimSpace(resp.Order.Reason),
			OrderNumber:   strings.TrimSpace(resp.Order.OrderNumber),
		}, nil
	}

	contribution, err := s.contributionFor(tranID, checkID, req.Pending, resp.Order)
	if err != nil {
		return ConfirmResult{}, &PersistenceError{TransactionID: tranID, CheckID: checkID, OrderNumber: contribution.OrderNumber, Err: err}
	}
	logger = logger.With("order_number", contribution.OrderNumber)

	token, err := IssueToken()
	if err != nil {
		return ConfirmResult{}, &PersistenceError{TransactionID: tranID, CheckID: checkID, OrderNumber: contribution.OrderNumber, Err: err}
	}
	contribution.Token = token

	png, err := RenderQR(token, s.qrSize)
	if err != nil {
		logger.Error("render_qr", "status", "failed", "error", err)
	}
	if s.archive != nil && len(png) > 0 {
		if url, err := s.archive.ArchiveQR(ctx, contribution, png); err != nil {
			logger.Warn("archive_qr", "status", "failed", "error", err)
		} else {
			contribution.QRURL = url
		}
	}

	stored, created, err := s.store.InsertContribution(ctx, contribution)
	if err != nil {
		logger.Error("record_contribution", "status", "db_error", "check_id", checkID, "error", err)
		return ConfirmResult{}, &PersistenceError{TransactionID: tranID, CheckID: checkID, OrderNumber: contribution.OrderNumber, Err: err}
	}
	if !created {
		return s.replay(stored), nil
	}

	if s.receipts != nil && stored.Email != "" {
		if err := s.receipts.SendReceipt(ctx, stored, png); err != nil {
			logger.Warn("send_receipt", "status", "failed", "error", err)
		}
	}
	logger.Info("contribution_recorded", "contribution_id", stored.ID)
	return ConfirmResult{Outcome: OutcomeApproved, GatewayStatus: status, OrderNumber: stored.OrderNumber, Contribution: stored, QRPNG: png}, nil
}

// contributionFor builds the row from the gateway's signed order. The session's pending
// order only contributes the email, and only when it is the order the gateway confirmed.
func (s *Service) contributionFor(tranID, checkID string, pending *models.PendingOrder, order negdi.OrderFields) (models.Contribution, error) {
	out := models.Contribution{
		TransactionID: tranID,
		CheckID:       checkID,
		Status:        models.ContributionStatusCompleted,
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		Currency:      strings.ToUpper(strings.TrimSpace(order.Currency)),
	}
	echoed, hasEcho := order.AmountDecimal()

	if pending != nil && !pendingMatches(pending, out.OrderNumber) {
		s.logger.Warn("confirm_payment", "status", "order_number_mismatch", "tranid", tranID, "session_order", pending.OrderNumber, "gateway_order", out.OrderNumber)
		pending = nil
	}

	switch {
	case pending != nil:
		out.Email = pending.Email
		out.OrderNumber = pending.OrderNumber
		out.Amount = pending.Amount
		if hasEcho {
			if !echoed.Equal(pending.Amount) {
				s.logger.Warn("confirm_payment", "status", "amount_mismatch", "tranid", tranID, "session_amount", pending.Amount.String(), "gateway_amount", echoed.String())
			}
			out.Amount = echoed
		}
		if out.Currency == "" {
			out.Currency = pending.Currency
		}
	default:
		s.logger.Warn("confirm_payment", "status", "pending_session_unmatched", "tranid", tranID)
		if !hasEcho {
			return out, errors.New("no matching pending order and gateway did not echo an amount")
		}
		out.Amount = echoed
	}
	if out.Currency == "" {
		out.Currency = s.currency
	}
	if !out.Amount.IsPositive() {
		return out, ErrInvalidAmount
	}
	return out, nil
}

// pendingMatches reports whether the session order is the one the gateway echoed. An
// inquiry without ordernum cannot contradict the session.
func pendingMatches(pending *models.PendingOrder, gatewayOrder string) bool {
	return gatewayOrder == "" || gatewayOrder == pending.OrderNumber
}

func (s *Service) lookupRecorded(ctx context.Context, tranID, checkID string) (models.Contribution, bool) {
	existing, err := s.store.GetContributionByTransactionID(ctx, tranID)
	if err != nil {
		return models.Contribution{}, false
	}
	if existing.CheckID != checkID {
		s.logger.Warn("confirm_payment", "status", "check_id_mismatch", "tranid", tranID)
		return models.Contribution{}, false
	}
	return existing, true
}

func (s *Service) replay(existing models.Contribution) ConfirmResult {
	png, err := RenderQR(existing.Token, s.qrSize)
	if err != nil {
		s.logger.Error("render_qr", "status", "failed", "tranid", existing.TransactionID, "error", err)
	}
	return ConfirmResult{
		Outcome:       OutcomeApproved,
		GatewayStatus: models.GatewayStatusApproved,
		OrderNumber:   existing.OrderNumber,
		Contribution:  existing,
		QRPNG:         png,
		Replayed:      true,
	}
}
