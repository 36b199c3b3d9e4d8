package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExists   = errors.New("session already exists")
)

// Store is the durable record store for sessions. Expired records are kept
// until explicitly deleted so the sweeper can observe and mark them.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// ExpiredBefore returns sessions whose expiry falls before t, regardless
	// of status. Callers filter out terminal records themselves.
	ExpiredBefore(ctx context.Context, t time.Time) ([]*Session, error)
}
