package donation

import (
	"errors"
	"fmt"

	"donato/backend/internal/integrations/negdi"
)

var (
	ErrMissingTransaction = errors.New("missing transaction information")
	ErrInvalidSignature   = negdi.ErrInvalidSignature
	ErrInvalidAmount      = errors.New("invalid contribution amount")
)

// PersistenceError means the gateway approved a payment but the contribution could not
// be recorded. Money has moved, so an operator has to reconcile it.
type PersistenceError struct {
	TransactionID string
	CheckID       string
	OrderNumber   string
	Err           error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("record contribution tranid=%s order=%s: %v", e.TransactionID, e.OrderNumber, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
