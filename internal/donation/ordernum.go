package donation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	orderDateLayout = "20060102"
	sequenceDigits  = 6
	MaxSequence     = 999999
)

var (
	ErrOrderNumberUnavailable = errors.New("order number unavailable")
	ErrOrderSequenceExhausted = errors.New("daily order sequence exhausted")
	ErrInvalidOrderNumber     = errors.New("invalid order number")
)

// CounterStore hands out the next sequence for a calendar day. Implementations must be
// atomic: concurrent callers for the same day never receive the same value.
type CounterStore interface {
	IncrementDailyCounter(ctx context.Context, day time.Time) (int, error)
}

// OrderNumbers issues merchant order numbers of the form YYYYMMDD + 6-digit sequence.
type OrderNumbers struct {
	store CounterStore
	loc   *time.Location
	now   func() time.Time
}

// NewOrderNumbers creates a generator that takes the day in loc.
func NewOrderNumbers(store CounterStore, loc *time.Location) *OrderNumbers {
	if loc == nil {
		loc = time.Local
	}
	return &OrderNumbers{store: store, loc: loc, now: time.Now}
}

// Next returns a number unique for today. A number is consumed even if the caller never
// uses it.
func (g *OrderNumbers) Next(ctx context.Context) (string, error) {
	day := g.now().In(g.loc)
	seq, err := g.store.IncrementDailyCounter(ctx, day)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOrderNumberUnavailable, err)
	}
	if seq > MaxSequence {
		return "", fmt.Errorf("%w: %w", ErrOrderNumberUnavailable, ErrOrderSequenceExhausted)
	}
	return FormatOrderNumber(day, seq), nil
}

// FormatOrderNumber renders YYYYMMDD followed by the six digit sequence.
func FormatOrderNumber(day time.Time, seq int) string {
	return day.Format(orderDateLayout) + fmt.Sprintf("%0*d", sequenceDigits, seq)
}

// ParseOrderNumber splits an order number back into its day and sequence.
func ParseOrderNumber(value string) (time.Time, int, error) {
	if len(value) != len(orderDateLayout)+sequenceDigits {
		return time.Time{}, 0, ErrInvalidOrderNumber
	}
	day, err := time.Parse(orderDateLayout, value[:len(orderDateLayout)])
	if err != nil {
		return time.Time{}, 0, ErrInvalidOrderNumber
	}
	seq, err := strconv.Atoi(value[len(orderDateLayout):])
	if err != nil || seq <= 0 {
		return time.Time{}, 0, ErrInvalidOrderNumber
	}
	return day, seq, nil
}
