package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"snapfeed/internal/repository"
)

var errSessionReleased = errors.New("session already released")

// session begins its transaction on first use so that a request does not
// hold a connection while it is busy with something else.
type session struct {
	ctx      context.Context
	db       *sqlx.DB
	tx       *sqlx.Tx
	released bool
}

func (s *session) conn() (sqlx.ExtContext, error) {
	if s.released {
		return nil, errSessionReleased
	}
	if s.tx == nil {
		tx, err := s.db.BeginTxx(s.ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin tx: %w", err)
		}
		s.tx = tx
	}
	return s.tx, nil
}

func (s *session) Users() repository.UserRepository {
	return &userRepository{s: s}
}

func (s *session) Posts() repository.PostRepository {
	return &postRepository{s: s}
}

// Commit flushes pending writes. The session stays usable; the next
// repository call opens a fresh transaction.
func (s *session) Commit() error {
	if s.released {
		return errSessionReleased
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *session) Release() error {
	if s.released {
		return nil
	}
	s.released = true
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback tx: %w", err)
	}
	return nil
}
