package main

import (
	"os"
	"path/filepath"
	"testing"

	"donato/backend/internal/config"
)

func TestPendingFromFlags(t *testing.T) {
	got, err := pendingFromFlags("", "", "")
	if err != nil || got != nil {
		t.Fatalf("no flags should mean no pending order, got %#v %v", got, err)
	}

	got, err = pendingFromFlags("20261016000003", "donor@example.com", "15.50")
	if err != nil {
		t.Fatalf("pendingFromFlags(): %v", err)
	}
	if got.OrderNumber != "20261016000003" || got.Amount.StringFixed(2) != "15.50" || got.Email != "donor@example.com" {
		t.Fatalf("unexpected pending order: %#v", got)
	}

	for _, tc := range [][3]string{
		{"20261016000003", "", ""},
		{"", "", "10"},
		{"bad", "", "10"},
		{"20261016000003", "", "-1"},
		{"20261016000003", "", "ten"},
	} {
		if _, err := pendingFromFlags(tc[0], tc[1], tc[2]); err == nil {
			t.Fatalf("expected error for %v", tc)
		}
	}
}

func TestNewLoggerQuietSkipsLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "reconcile.log")
	cfg := config.LoggingConfig{File: path}

	logger, cleanup, err := newLogger(cfg, true)
	if err != nil {
		t.Fatalf("newLogger(quiet): %v", err)
	}
	logger.Info("dropped")
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("quiet logger should not open %s, stat err=%v", path, err)
	}

	logger, cleanup, err = newLogger(cfg, false)
	if err != nil {
		t.Fatalf("newLogger(): %v", err)
	}
	logger.Info("kept")
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		t.Fatalf("expected log file content, err=%v", err)
	}
}
