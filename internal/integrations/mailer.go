package integrations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"

	"donato/backend/internal/config"
	"donato/backend/internal/models"

	"gopkg.in/gomail.v2"
)

const receiptQRName = "donation-qr.png"

var receiptTemplate = template.Must(template.New("receipt").Parse(`<p>Thank you for your contribution!</p>
<p>
Amount: {{.Amount}} {{.Currency}}<br>
Order: {{.OrderNumber}}<br>
Token: {{.Token}}
</p>
{{if .HasQR}}<p><img src="cid:{{.QRName}}" alt="Contribution QR code"></p>{{end}}`))

// messageSender is satisfied by *gomail.Dialer.
type messageSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer emails a receipt with the contribution's QR code to the donor.
type Mailer struct {
	from     string
	fromName string
	sender   messageSender
}

// NewMailer returns nil when SMTP is not configured.
func NewMailer(cfg config.SMTPConfig) *Mailer {
	if strings.TrimSpace(cfg.Host) == "" || strings.TrimSpace(cfg.FromEmail) == "" {
		return nil
	}
	return &Mailer{
		from:     cfg.FromEmail,
		fromName: cfg.FromName,
		sender:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// SendReceipt emails the token with the QR attached inline.
func (m *Mailer) SendReceipt(ctx context.Context, c models.Contribution, png []byte) error {
	if m == nil {
		return errors.New("mailer is not configured")
	}
	to := strings.TrimSpace(c.Email)
	if to == "" {
		return errors.New("contribution has no email")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := receiptTemplate.Execute(&body, map[string]any{
		"Amount":      c.Amount.StringFixed(2),
		"Currency":    c.Currency,
		"OrderNumber": c.OrderNumber,
		"Token":       c.Token,
		"HasQR":       len(png) > 0,
		"QRName":      receiptQRName,
	}); err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your contribution "+c.OrderNumber)
	msg.SetBody("text/html", body.String())
	if len(png) > 0 {
		msg.Embed(receiptQRName, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(png)
			return err
		}))
	}
	return m.sender.DialAndSend(msg)
}
