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

const postColumns = `id, user_id, caption, url, file_type, file_name, created_at`

type postRepository struct {
	s *session
}

func (r *postRepository) Create(ctx context.Context, post *domain.Post) error {
	conn, err := r.s.conn()
	if err != nil {
		return err
	}

	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	post.CreatedAt = time.Now().UTC()

	_, err = conn.ExecContext(ctx, conn.Rebind(`
INSERT INTO posts (id, user_id, caption, url, file_type, file_name, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`),
		post.ID,
		post.UserID,
		post.Caption,
		post.URL,
		string(post.FileType),
		post.FileName,
		post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *postRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	conn, err := r.s.conn()
	if err != nil {
		return nil, err
	}

	var post domain.Post
	if err := sqlx.GetContext(ctx, conn, &post, conn.Rebind(`SELECT `+postColumns+` FROM posts WHERE id = ?`), id); err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("post: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}
	return &post, nil
}

func (r *postRepository) ListNewestFirst(ctx context.Context) ([]domain.Post, error) {
	conn, err := r.s.conn()
	if err != nil {
		return nil, err
	}

	var posts []domain.Post
	if err := sqlx.SelectContext(ctx, conn, &posts, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (r *postRepository) Delete(ctx context.Context, id uuid.UUID) error {
	conn, err := r.s.conn()
	if err != nil {
		return err
	}

	res, err := conn.ExecContext(ctx, conn.Rebind(`DELETE FROM posts WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete post rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete post: %w", repository.ErrNotFound)
	}
	return nil
}
