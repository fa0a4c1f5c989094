// Package negditest runs an in-process NEGDI gateway that signs its replies, for tests.
package negditest

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"donato/backend/internal/integrations/negdi"
)

// CheckoutURL prefixes every negdiurl the fake hands out.
const CheckoutURL = "https://checkout.negdi.test/pay"

type order struct {
	OrderNum string `json:"ordernum,omitempty"`
	TranID   string `json:"tranid,omitempty"`
	CheckID  string `json:"checkid,omitempty"`
	NegdiURL string `json:"negdiurl,omitempty"`
	Status   string `json:"status,omitempty"`
	Reason   string `json:"reason"`
	Amount   string `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// Gateway is a fake gateway. Fields are guarded by mu; use the setters while a test runs.
type Gateway struct {
	Server *httptest.Server

	key *rsa.PrivateKey

	mu            sync.Mutex
	inquiryStatus string
	inquiryAmount string
	inquiryOrder  string
	badSignature  bool
	failStatus    int
	lastCreate    map[string]any
	createCalls   int
	inquiryCalls  int
}

// New starts a gateway with a fresh RSA key; it stops when the test ends.
func New(t testing.TB) *Gateway {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate gateway key: %v", err)
	}
	g := &Gateway{key: key, inquiryStatus: negdi.StatusApproved, inquiryAmount: "10.00"}
	mux := http.NewServeMux()
	mux.HandleFunc("/ec1000", g.handleCreate)
	mux.HandleFunc("/ec1098", g.handleInquiry)
	g.Server = httptest.NewServer(mux)
	t.Cleanup(g.Server.Close)
	return g
}

func (g *Gateway) Config() negdi.Config {
	return negdi.Config{
		CreateOrderURL: g.Server.URL + "/ec1000",
		InquiryURL:     g.Server.URL + "/ec1098",
		TerminalID:     "1",
		Username:       "user",
		Password:       "123456",
	}
}

// Client returns a negdi client pointed at the fake.
func (g *Gateway) Client() *negdi.Client {
	return negdi.NewClient(g.Config(), g.Server.Client(), nil)
}

func (g *Gateway) PublicKey() crypto.PublicKey {
	return &g.key.PublicKey
}

// Verifier returns a verifier for the fake's key.
func (g *Gateway) Verifier() *negdi.Verifier {
	return negdi.NewVerifierFromKey(g.PublicKey())
}

func (g *Gateway) SetInquiryStatus(status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inquiryStatus = status
}

func (g *Gateway) SetInquiryAmount(amount string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inquiryAmount = amount
}

// SetInquiryOrderNumber makes inquiry replies echo ordernum; empty omits it.
func (g *Gateway) SetInquiryOrderNumber(orderNumber string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inquiryOrder = orderNumber
}

// SetBadSignature makes the gateway sign a different payload from the one it returns.
func (g *Gateway) SetBadSignature(bad bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.badSignature = bad
}

// SetFailStatus makes every call answer with the given HTTP status; 0 restores normal replies.
func (g *Gateway) SetFailStatus(status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failStatus = status
}

func (g *Gateway) Calls() (create, inquiry int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createCalls, g.inquiryCalls
}

func (g *Gateway) LastCreate() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastCreate
}

// Sign produces an ordersign for payload the way the gateway does.
func (g *Gateway) Sign(payload []byte) string {
	canonical, err := negdi.Canonicalize(payload)
	if err != nil {
		panic(err)
	}
	digest := sha256.Sum256(canonical)
	sig, err := rsa.SignPKCS1v15(rand.Reader, g.key, crypto.SHA256, digest[:])
	if err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(sig)
}

func (g *Gateway) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	g.mu.Lock()
	g.createCalls++
	g.lastCreate = body
	fail := g.failStatus
	g.mu.Unlock()
	if fail != 0 {
		w.WriteHeader(fail)
		return
	}

	orderNum, _ := body["ordernum"].(string)
	currency, _ := body["currency"].(string)
	g.writeSigned(w, order{
		OrderNum: orderNum,
		NegdiURL: CheckoutURL + "?ordernum=" + orderNum,
		Currency: currency,
	})
}

func (g *Gateway) handleInquiry(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	g.mu.Lock()
	g.inquiryCalls++
	status := g.inquiryStatus
	amount := g.inquiryAmount
	orderNum := g.inquiryOrder
	fail := g.failStatus
	g.mu.Unlock()
	if fail != 0 {
		w.WriteHeader(fail)
		return
	}

	reason := ""
	if status != negdi.StatusApproved {
		reason = "declined by issuer"
	}
	g.writeSigned(w, order{
		OrderNum: orderNum,
		TranID:   body["tranid"],
		CheckID:  body["checkid"],
		Status:   status,
		Reason:   reason,
		Amount:   amount,
		Currency: "USD",
	})
}

func (g *Gateway) writeSigned(w http.ResponseWriter, o order) {
	raw, _ := json.Marshal(o)
	g.mu.Lock()
	bad := g.badSignature
	g.mu.Unlock()

	signed := raw
	if bad {
		signed = []byte(`{"tampered":true}`)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"order":     json.RawMessage(raw),
		"ordersign": g.Sign(signed),
	})
}
