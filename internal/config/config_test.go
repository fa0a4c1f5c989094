package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/donato")
	t.Setenv("SECRET_KEY", "secret")
	t.Setenv("NEGDI_BASE_URL", "https://negdi.example/api/")
	t.Setenv("NEGDI_CREATE_ORDER_URL", "")
	t.Setenv("NEGDI_INQUIRY_URL", "")
	t.Setenv("NEGDI_TERMINAL_ID", "1")
	t.Setenv("NEGDI_USERNAME", "user")
	t.Setenv("NEGDI_PASSWORD", "123456")
	t.Setenv("NEGDI_PUBLIC_KEY", "-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----")
	t.Setenv("NEGDI_PUBLIC_KEY_FILE", "")
	t.Setenv("NEGDI_SKIP_SIGNATURE", "")
	t.Setenv("CONTRIBUTION_MIN", "")
	t.Setenv("CONTRIBUTION_MAX", "")
	t.Setenv("ORDER_TIMEZONE", "UTC")
}

// TestFromEnvDefaults verifies endpoint derivation and defaults behavior.
func TestFromEnvDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv(): %v", err)
	}
	if cfg.Negdi.CreateOrderURL != "https://negdi.example/api/ec1000" || cfg.Negdi.InquiryURL != "https://negdi.example/api/ec1098" {
		t.Fatalf("unexpected endpoints: %s %s", cfg.Negdi.CreateOrderURL, cfg.Negdi.InquiryURL)
	}
	if cfg.Negdi.Currency != "USD" || cfg.Negdi.Timeout != 15*time.Second {
		t.Fatalf("unexpected negdi defaults: %#v", cfg.Negdi)
	}
	if cfg.Contribution.Min.String() != "1" || cfg.Contribution.Max.String() != "10000" {
		t.Fatalf("unexpected contribution bounds: %s-%s", cfg.Contribution.Min, cfg.Contribution.Max)
	}
	if cfg.OrderLocation != time.UTC || cfg.IsTest() {
		t.Fatalf("unexpected location or env: %v %s", cfg.OrderLocation, cfg.Env)
	}
}

// TestFromEnvValidation verifies required keys and the signature bypass rule.
func TestFromEnvValidation(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing_database", map[string]string{"DATABASE_URL": ""}, "DATABASE_URL"},
		{"missing_secret", map[string]string{"SECRET_KEY": ""}, "SECRET_KEY"},
		{"missing_endpoints", map[string]string{"NEGDI_BASE_URL": ""}, "NEGDI_BASE_URL"},
		{"missing_credentials", map[string]string{"NEGDI_PASSWORD": ""}, "NEGDI_PASSWORD"},
		{"missing_key", map[string]string{"NEGDI_PUBLIC_KEY": ""}, "NEGDI_PUBLIC_KEY"},
		{"skip_outside_test", map[string]string{"NEGDI_SKIP_SIGNATURE": "true"}, "NEGDI_SKIP_SIGNATURE"},
		{"bad_bounds", map[string]string{"CONTRIBUTION_MIN": "50", "CONTRIBUTION_MAX": "10"}, "CONTRIBUTION_MIN"},
		{"bad_decimal", map[string]string{"CONTRIBUTION_MAX": "lots"}, "CONTRIBUTION_MAX"},
		{"bad_timezone", map[string]string{"ORDER_TIMEZONE": "Mars/Olympus"}, "ORDER_TIMEZONE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", tc.wantErr, err)
			}
		})
	}
}

// TestSkipSignatureInTestEnv verifies the bypass works without a key in the test environment.
func TestSkipSignatureInTestEnv(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("NEGDI_PUBLIC_KEY", "")
	t.Setenv("NEGDI_SKIP_SIGNATURE", "true")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv(): %v", err)
	}
	if !cfg.IsTest() || !cfg.Negdi.SkipSignature {
		t.Fatalf("expected test env with signature bypass")
	}
}

// TestPublicKeyFile verifies the key is read from disk when not set inline.
func TestPublicKeyFile(t *testing.T) {
	setBaseEnv(t)
	path := filepath.Join(t.TempDir(), "negdi.pem")
	if err := os.WriteFile(path, []byte("-----BEGIN PUBLIC KEY-----\nxyz\n-----END PUBLIC KEY-----\n"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	t.Setenv("NEGDI_PUBLIC_KEY", "")
	t.Setenv("NEGDI_PUBLIC_KEY_FILE", path)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv(): %v", err)
	}
	if !strings.Contains(cfg.Negdi.PublicKey, "xyz") {
		t.Fatalf("public key not loaded from file")
	}
}
