package negdi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderType3DS = "3dsOrder"

	StatusApproved = "Approved"

	opCreateOrder  = "create_order"
	opInquireOrder = "inquire_order"
)

// Config holds gateway endpoints and terminal credentials.
type Config struct {
	CreateOrderURL string
	InquiryURL     string
	TerminalID     string
	Username       string
	Password       string
}

// Client talks to the NEGDI e-commerce API.
type Client struct {
	createOrderURL string
	inquiryURL     string
	terminalID     string
	username       string
	password       string
	httpClient     *http.Client
	logger         *slog.Logger
}

// CreateOrderRequest is the order sent to ec1000.
type CreateOrderRequest struct {
	Amount      decimal.Decimal
	Currency    string
	ReturnURL   string
	OrderNumber string
}

// InquiryRequest identifies a transaction for ec1098.
type InquiryRequest struct {
	TransactionID string
	CheckID       string
}

// OrderFields are the parts of the gateway's "order" object this service reads. The
// gateway echoes more; RawOrder keeps all of it.
type OrderFields struct {
	NegdiURL      string          `json:"negdiurl"`
	Status        string          `json:"status"`
	Reason        string          `json:"reason"`
	OrderNumber   string          `json:"ordernum"`
	TransactionID string          `json:"tranid"`
	CheckID       string          `json:"checkid"`
	Currency      string          `json:"currency"`
	Amount        json.RawMessage `json:"amount"`
}

// AmountDecimal parses the echoed amount, which the gateway sends either as a number or
// as a quoted number.
func (f OrderFields) AmountDecimal() (decimal.Decimal, bool) {
	raw := strings.Trim(strings.TrimSpace(string(f.Amount)), `"`)
	if raw == "" || raw == "null" {
		return decimal.Decimal{}, false
	}
	parsed, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return parsed, true
}

// OrderResponse is one gateway reply. RawOrder holds the "order" bytes exactly as
// received so the signature can be checked against them.
type OrderResponse struct {
	Order     OrderFields
	RawOrder  json.RawMessage
	Signature string
	Body      []byte
}

// IsApproved reports whether an inquiry reply means the payment went through.
func (r OrderResponse) IsApproved() bool {
	return strings.TrimSpace(r.Order.Status) == StatusApproved
}

type createOrderPayload struct {
	OrderType  string      `json:"ordertype"`
	TerminalID string      `json:"terminalid"`
	Username   string      `json:"username"`
	Password   string      `json:"password"`
	ReturnURL  string      `json:"returnurl"`
	Amount     json.Number `json:"amount"`
	Currency   string      `json:"currency"`
	OrderNum   string      `json:"ordernum"`
}

type inquiryPayload struct {
	TerminalID string `json:"terminalid"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	TranID     string `json:"tranid"`
	CheckID    string `json:"checkid"`
}

type responseEnvelope struct {
	Order     json.RawMessage `json:"order"`
	OrderSign string          `json:"ordersign"`
}

// NewClient creates client. A nil httpClient gets a default timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		createOrderURL: strings.TrimSpace(cfg.CreateOrderURL),
		inquiryURL:     strings.TrimSpace(cfg.InquiryURL),
		terminalID:     strings.TrimSpace(cfg.TerminalID),
		username:       strings.TrimSpace(cfg.Username),
		password:       cfg.Password,
		httpClient:     httpClient,
		logger:         logger,
	}
}

// CreateOrder registers a 3DS order and returns the hosted checkout URL in Order.NegdiURL.
func (c *Client) CreateOrder(ctx context.Context, in CreateOrderRequest) (OrderResponse, error) {
	if !in.Amount.IsPositive() {
		return OrderResponse{}, &GatewayError{Op: opCreateOrder, Kind: KindProtocol, Err: errors.New("amount must be positive")}
	}
	payload, err := json.Marshal(createOrderPayload{
		OrderType:  OrderType3DS,
		TerminalID: c.terminalID,
		Username:   c.username,
		Password:   c.password,
		ReturnURL:  strings.TrimSpace(in.ReturnURL),
		Amount:     json.Number(in.Amount.StringFixed(2)),
		Currency:   strings.ToUpper(strings.TrimSpace(in.Currency)),
		OrderNum:   strings.TrimSpace(in.OrderNumber),
	})
	if err != nil {
		return OrderResponse{}, &GatewayError{Op: opCreateOrder, Kind: KindProtocol, Err: err}
	}

	out, err := c.do(ctx, opCreateOrder, c.createOrderURL, payload)
	if err != nil {
		return out, err
	}
	if strings.TrimSpace(out.Order.NegdiURL) == "" {
		return out, &GatewayError{Op: opCreateOrder, Kind: KindProtocol, Err: errors.New("response missing order.negdiurl")}
	}
	return out, nil
}

// InquireOrder asks the gateway for the final status of a transaction.
func (c *Client) InquireOrder(ctx context.Context, in InquiryRequest) (OrderResponse, error) {
	payload, err := json.Marshal(inquiryPayload{
		TerminalID: c.terminalID,
		Username:   c.username,
		Password:   c.password,
		TranID:     strings.TrimSpace(in.TransactionID),
		CheckID:    strings.TrimSpace(in.CheckID),
	})
	if err != nil {
		return OrderResponse{}, &GatewayError{Op: opInquireOrder, Kind: KindProtocol, Err: err}
	}

	out, err := c.do(ctx, opInquireOrder, c.inquiryURL, payload)
	if err != nil {
		return out, err
	}
	if strings.TrimSpace(out.Order.Status) == "" {
		return out, &GatewayError{Op: opInquireOrder, Kind: KindProtocol, Err: errors.New("response missing order.status")}
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, target string, payload []byte) (OrderResponse, error) {
	var out OrderResponse
	if target == "" {
		return out, &GatewayError{Op: op, Kind: KindProtocol, Err: errors.New("endpoint is not configured")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return out, &GatewayError{Op: op, Kind: KindProtocol, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, &GatewayError{Op: op, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, &GatewayError{Op: op, Kind: KindNetwork, Err: err}
	}
	out.Body = body
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, &GatewayError{Op: op, Kind: KindProtocol, Err: &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}}
	}

	var env responseEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return out, &GatewayError{Op: op, Kind: KindProtocol, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(env.Order) == 0 || string(env.Order) == "null" {
		return out, &GatewayError{Op: op, Kind: KindProtocol, Err: errors.New("response missing order")}
	}
	if err := json.Unmarshal(env.Order, &out.Order); err != nil {
		return out, &GatewayError{Op: op, Kind: KindProtocol, Err: fmt.Errorf("decode order: %w", err)}
	}
	out.RawOrder = env.Order
	out.Signature = strings.TrimSpace(env.OrderSign)

	if c.logger != nil {
		c.logger.Debug("negdi_api_response", "op", op, "status", resp.StatusCode, "order_status", out.Order.Status)
	}
	return out, nil
}
