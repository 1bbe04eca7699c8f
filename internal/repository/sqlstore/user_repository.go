package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"snapfeed/internal/domain"
	"snapfeed/internal/repository"
)

const userColumns = `id, email, password_hash, is_active, is_superuser, is_verified, created_at, updated_at`

type userRepository struct {
	s *session
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	conn, err := r.s.conn()
	if err != nil {
		return err
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = conn.ExecContext(ctx, conn.Rebind(`
INSERT INTO users (id, email, password_hash, is_active, is_superuser, is_verified, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		user.ID,
		user.Email,
		user.PasswordHash,
		user.IsActive,
		user.IsSuperuser,
		user.IsVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert user: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	conn, err := r.s.conn()
	if err != nil {
		return nil, err
	}

	var user domain.User
	if err := sqlx.GetContext(ctx, conn, &user, conn.Rebind(query), arg); err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	conn, err := r.s.conn()
	if err != nil {
		return nil, err
	}

	var users []domain.User
	if err := sqlx.SelectContext(ctx, conn, &users, `SELECT `+userColumns+` FROM users`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	conn, err := r.s.conn()
	if err != nil {
		return err
	}

	user.UpdatedAt = time.Now().UTC()
	res, err := conn.ExecContext(ctx, conn.Rebind(`
UPDATE users
SET email=?, password_hash=?, is_active=?, is_superuser=?, is_verified=?, updated_at=?
WHERE id=?`),
		user.Email,
		user.PasswordHash,
		user.IsActive,
		user.IsSuperuser,
		user.IsVerified,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update user: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("update user: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update user: %w", repository.ErrNotFound)
	}
	return nil
}
