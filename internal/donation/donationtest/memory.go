// Package donationtest has in-memory stores for exercising the donation flow without Postgres.
package donationtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"donato/backend/internal/models"
	"donato/backend/internal/repository"
)

// ErrNotFound matches the repository error so callers can use errors.Is.
var ErrNotFound = repository.ErrContributionNotFound

// Counter is an in-memory daily counter with the same contract as the order_numbers table.
type Counter struct {
	mu   sync.Mutex
	days map[string]int
	Err  error
}

// NewCounter creates counter.
func NewCounter() *Counter {
	return &Counter{days: make(map[string]int)}
}

func (c *Counter) IncrementDailyCounter(_ context.Context, day time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	key := day.Format("2006-01-02")
	c.days[key]++
	return c.days[key], nil
}

// Store keeps contributions keyed by transaction id.
type Store struct {
	mu        sync.Mutex
	rows      map[string]models.Contribution
	nextID    int
	InsertErr error
}

// NewStore creates store.
func NewStore() *Store {
	return &Store{rows: make(map[string]models.Contribution)}
}

func (s *Store) InsertContribution(_ context.Context, c models.Contribution) (models.Contribution, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return models.Contribution{}, false, s.InsertErr
	}
	if existing, ok := s.rows[c.TransactionID]; ok {
		return existing, false, nil
	}
	for _, row := range s.rows {
		if row.Token == c.Token {
			return models.Contribution{}, false, fmt.Errorf("duplicate token %s", c.Token)
		}
	}
	s.nextID++
	c.ID = fmt.Sprintf("contribution-%d", s.nextID)
	c.CreatedAt = time.Now().UTC()
	s.rows[c.TransactionID] = c
	return c, true, nil
}

func (s *Store) GetContributionByTransactionID(_ context.Context, transactionID string) (models.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[transactionID]
	if !ok {
		return models.Contribution{}, ErrNotFound
	}
	return row, nil
}

func (s *Store) GetContributionByToken(_ context.Context, token string) (models.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.Token == token {
			return row, nil
		}
	}
	return models.Contribution{}, ErrNotFound
}

// Count returns the number of stored rows.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *Store) All() []models.Contribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Contribution, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out
}
