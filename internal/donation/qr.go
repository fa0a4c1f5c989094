package donation

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// DefaultQRSize is the QR edge in pixels when none is configured.
const DefaultQRSize = 256

// IssueToken returns a fresh random token for a donor.
func IssueToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return id.String(), nil
}

// RenderQR encodes payload as a PNG QR code with medium error correction.
func RenderQR(payload string, size int) ([]byte, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, fmt.Errorf("qr payload is required")
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	return qrcode.Encode(payload, qrcode.Medium, size)
}

// QRDataURI wraps PNG bytes for inline use in an <img> tag.
func QRDataURI(png []byte) string {
	if len(png) == 0 {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
