package donation

import (
	"bytes"
	"strings"
	"testing"
)

func TestIssueTokenUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		token, err := IssueToken()
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		if len(token) != 36 {
			t.Fatalf("unexpected token format: %q", token)
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token %s", token)
		}
		seen[token] = struct{}{}
	}
}

func TestRenderQRProducesPNG(t *testing.T) {
	png, err := RenderQR("3f0a3f4c-0a4b-4d53-9a57-6f7a7a0c2d11", 0)
	if err != nil {
		t.Fatalf("render qr: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("expected png signature")
	}
	uri := QRDataURI(png)
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("unexpected data uri prefix: %.40s", uri)
	}
	if QRDataURI(nil) != "" {
		t.Fatalf("empty png should produce empty uri")
	}
}

func TestRenderQRRejectsEmptyPayload(t *testing.T) {
	if _, err := RenderQR("   ", 128); err == nil {
		t.Fatalf("expected empty payload to fail")
	}
}
