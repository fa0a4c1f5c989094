// Package app wires the donation service from configuration for the binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"donato/backend/internal/config"
	"donato/backend/internal/donation"
	"donato/backend/internal/integrations"
	"donato/backend/internal/integrations/negdi"
	"donato/backend/internal/repository"
)

// NewVerifier returns the configured signature check. The bypass is only reachable in the
// test environment because config validation rejects it elsewhere.
func NewVerifier(cfg config.NegdiConfig, logger *slog.Logger) (donation.SignatureVerifier, error) {
	if cfg.SkipSignature {
		logger.Warn("negdi_signature", "status", "verification_disabled")
		return negdi.SkipVerifier{}, nil
	}
	verifier, err := negdi.NewVerifier(cfg.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("negdi public key: %w", err)
	}
	return verifier, nil
}

// NewService builds the donation service on top of the repository and the optional S3 and
// SMTP integrations.
func NewService(ctx context.Context, cfg *config.Config, repo *repository.Repository, logger *slog.Logger) (*donation.Service, error) {
	verifier, err := NewVerifier(cfg.Negdi, logger)
	if err != nil {
		return nil, err
	}

	gateway := negdi.NewClient(negdi.Config{
		CreateOrderURL: cfg.Negdi.CreateOrderURL,
		InquiryURL:     cfg.Negdi.InquiryURL,
		TerminalID:     cfg.Negdi.TerminalID,
		Username:       cfg.Negdi.Username,
		Password:       cfg.Negdi.Password,
	}, &http.Client{Timeout: cfg.Negdi.Timeout}, logger)

	opts := donation.Options{
		Gateway:      gateway,
		Verifier:     verifier,
		Store:        repo,
		OrderNumbers: donation.NewOrderNumbers(repo, cfg.OrderLocation),
		Currency:     cfg.Negdi.Currency,
		Logger:       logger,
	}

	s3Client, err := integrations.NewS3(ctx, cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("s3: %w", err)
	}
	if s3Client != nil {
		opts.Archive = s3Client
	}
	if mailer := integrations.NewMailer(cfg.SMTP); mailer != nil {
		opts.Receipts = mailer
	}
	return donation.NewService(opts), nil
}
