package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"donato/backend/internal/app"
	"donato/backend/internal/config"
	"donato/backend/internal/db"
	"donato/backend/internal/donation"
	"donato/backend/internal/logging"
	"donato/backend/internal/models"
	"donato/backend/internal/repository"

	"github.com/shopspring/decimal"
)

// report is printed as JSON. OrderRows counts rows already recorded under -ordernum
// before this run.
type report struct {
	Outcome       donation.Outcome     `json:"outcome"`
	GatewayStatus string               `json:"gatewayStatus,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	Replayed      bool                 `json:"replayed,omitempty"`
	OrderRows     int                  `json:"orderRows,omitempty"`
	Contribution  *models.Contribution `json:"contribution,omitempty"`
}

func main() {
	tranIDFlag := flag.String("tranid", "", "gateway transaction id")
	checkIDFlag := flag.String("checkid", "", "gateway check id")
	orderFlag := flag.String("ordernum", "", "order number the donor started with")
	emailFlag := flag.String("email", "", "donor email, if known")
	amountFlag := flag.String("amount", "", "amount the donor started with; defaults to the gateway's echo")
	timeoutFlag := flag.Duration("timeout", 30*time.Second, "overall timeout")
	quietFlag := flag.Bool("quiet", false, "suppress logs; print only the JSON report")
	flag.Parse()

	tranID := strings.TrimSpace(*tranIDFlag)
	checkID := strings.TrimSpace(*checkIDFlag)
	if tranID == "" || checkID == "" {
		fmt.Fprintln(os.Stderr, "usage: reconcile -tranid <id> -checkid <id> [-ordernum N -amount 10.00 -email a@b]")
		os.Exit(2)
	}
	pending, err := pendingFromFlags(*orderFlag, *emailFlag, *amountFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid flags: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, cleanup, err := newLogger(cfg.Logging, *quietFlag)
	if err != nil {
		log.Fatalf("log error: %v", err)
	}
	defer func() {
		_ = cleanup()
	}()
	logger = logger.With("service", "reconcile")
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := repository.New(pool)
	svc, err := app.NewService(ctx, cfg, repo, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "service error: %v\n", err)
		os.Exit(1)
	}

	orderRows := 0
	if pending != nil {
		existing, err := repo.ListContributionsByOrderNumber(ctx, pending.OrderNumber)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lookup order %s: %v\n", pending.OrderNumber, err)
			os.Exit(1)
		}
		orderRows = len(existing)
	}

	res, err := svc.Confirm(ctx, donation.ConfirmRequest{TransactionID: tranID, CheckID: checkID, Pending: pending})
	if err != nil {
		var perr *donation.PersistenceError
		if errors.As(err, &perr) {
			fmt.Fprintf(os.Stderr, "record failed for tranid=%s ordernum=%s: %v\n", perr.TransactionID, perr.OrderNumber, perr.Err)
		} else {
			fmt.Fprintf(os.Stderr, "confirm error: %v\n", err)
		}
		os.Exit(1)
	}

	out := report{Outcome: res.Outcome, GatewayStatus: res.GatewayStatus, Reason: res.Reason, Replayed: res.Replayed, OrderRows: orderRows}
	if res.Outcome == donation.OutcomeApproved {
		out.Contribution = &res.Contribution
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

// pendingFromFlags rebuilds the session's pending order when the operator knows it.
func newLogger(cfg config.LoggingConfig, quiet bool) (*slog.Logger, logging.Cleanup, error) {
	if quiet {
		return logging.Discard(), func() error { return nil }, nil
	}
	return logging.New(cfg)
}

func pendingFromFlags(orderNumber, email, amount string) (*models.PendingOrder, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	amount = strings.TrimSpace(amount)
	if orderNumber == "" && amount == "" {
		return nil, nil
	}
	if orderNumber == "" || amount == "" {
		return nil, errors.New("-ordernum and -amount must be given together")
	}
	if _, _, err := donation.ParseOrderNumber(orderNumber); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil || !parsed.IsPositive() {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	return &models.PendingOrder{
		Email:       strings.TrimSpace(email),
		OrderNumber: orderNumber,
		Amount:      parsed,
	}, nil
}
