package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ContributionStatusCompleted = "completed"

	GatewayStatusApproved = "Approved"
)

// Contribution is a donation the gateway confirmed as approved.
type Contribution struct {
	ID            string          `json:"id"`
	Email         string          `json:"email,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transactionId"`
	OrderNumber   string          `json:"orderNumber"`
	Token         string          `json:"token"`
	CheckID       string          `json:"checkId"`
	Status        string          `json:"status"`
	QRURL         string          `json:"qrUrl,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// PendingOrder is what the browser session remembers between order creation and the
// gateway redirect.
type PendingOrder struct {
	Email       string
	OrderNumber string
	Amount      decimal.Decimal
	Currency    string
	CreatedAt   time.Time
}
