package repository

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert or update violates a unique constraint.
	ErrDuplicate = errors.New("record already exists")
)

// Store owns the connection pool and hands out per-request units of work.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Begin(ctx context.Context) (Session, error)
	Close() error
}

// Session is a unit of work. Writes become visible only after Commit;
// Release rolls back whatever was not committed and must be called on every
// exit path.
type Session interface {
	Users() UserRepository
	Posts() PostRepository
	Commit() error
	Release() error
}
