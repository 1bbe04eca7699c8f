package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"snapfeed/internal/domain"
	"snapfeed/internal/repository"
	"snapfeed/internal/storage"
)

const unknownEmail = "Unknown"

// UploadInput is a single media file received from a client.
type UploadInput struct {
	File        io.Reader
	FileName    string
	ContentType string
	Caption     string
}

// FeedEntry is a post decorated for the requesting user.
type FeedEntry struct {
	domain.Post
	Email   string
	IsOwner bool
}

type PostService interface {
	Ingest(ctx context.Context, uow repository.Session, owner *domain.User, in UploadInput) (*domain.Post, error)
	ListFeed(ctx context.Context, uow repository.Session, requesterID uuid.UUID) ([]FeedEntry, error)
	DeletePost(ctx context.Context, uow repository.Session, postID, requesterID uuid.UUID) error
}

type PostServiceConfig struct {
	TempDir string
	Tag     string
	Logger  logrus.FieldLogger
}

type postService struct {
	host    storage.Host
	tempDir string
	tags    []string
	logger  logrus.FieldLogger
}

func NewPostService(host storage.Host, cfg PostServiceConfig) PostService {
	var tags []string
	if cfg.Tag != "" {
		tags = []string{cfg.Tag}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &postService{
		host:    host,
		tempDir: cfg.TempDir,
		tags:    tags,
		logger:  logger,
	}
}

func (s *postService) Ingest(ctx context.Context, uow repository.Session, owner *domain.User, in UploadInput) (*domain.Post, error) {
	if owner == nil {
		return nil, NewError(ErrAuthentication, "Unauthorized")
	}
	if in.File == nil {
		return nil, NewError(ErrValidation, "file is required")
	}

	path, err := s.stage(in)
	if err != nil {
		return nil, wrapError(ErrUpload, "File upload failed", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.WithError(err).WithField("path", path).Warn("failed to remove staged upload")
		}
	}()

	res, err := s.forward(ctx, path, in)
	if err != nil {
		return nil, wrapError(ErrUpload, "File upload failed", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, wrapError(ErrUpload, "File upload failed",
			fmt.Errorf("media host responded %d: %s", res.StatusCode, res.Message))
	}

	post := &domain.Post{
		UserID:   owner.ID,
		Caption:  in.Caption,
		URL:      res.URL,
		FileType: domain.MediaKindFromContentType(in.ContentType),
		FileName: res.Name,
	}
	if err := s.persist(ctx, uow, post); err != nil {
		if derr := s.host.Discard(ctx, *res); derr != nil {
			s.logger.WithError(derr).WithField("file_id", res.FileID).Warn("failed to discard orphaned upload")
		}
		return nil, wrapError(ErrUpload, "File upload failed", err)
	}

	s.logger.WithFields(logrus.Fields{
		"post_id":   post.ID,
		"user_id":   owner.ID,
		"file_type": post.FileType,
	}).Info("post created")
	return post, nil
}

// stage copies the incoming stream into a temp file so the host always
// receives a complete, seekable file.
func (s *postService) stage(in UploadInput) (string, error) {
	ext := strings.ToLower(filepath.Ext(in.FileName))
	tmp, err := os.CreateTemp(s.tempDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()

	if _, err := io.Copy(tmp, in.File); err != nil {
		_ = tmp.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return path, nil
}

func (s *postService) forward(ctx context.Context, path string, in UploadInput) (*storage.UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reopen temp file: %w", err)
	}
	defer f.Close()

	res, err := s.host.Upload(ctx, f, storage.UploadOptions{
		FileName:    in.FileName,
		ContentType: in.ContentType,
		UniqueName:  true,
		Tags:        s.tags,
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("media host returned no result")
	}
	return res, nil
}

func (s *postService) persist(ctx context.Context, uow repository.Session, post *domain.Post) error {
	if err := uow.Posts().Create(ctx, post); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *postService) ListFeed(ctx context.Context, uow repository.Session, requesterID uuid.UUID) ([]FeedEntry, error) {
	posts, err := uow.Posts().ListNewestFirst(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	users, err := uow.Users().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	emails := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		emails[u.ID] = u.Email
	}

	feed := make([]FeedEntry, 0, len(posts))
	for _, p := range posts {
		email, ok := emails[p.UserID]
		if !ok {
			email = unknownEmail
		}
		feed = append(feed, FeedEntry{
			Post:    p,
			Email:   email,
			IsOwner: p.UserID == requesterID,
		})
	}
	return feed, nil
}

func (s *postService) DeletePost(ctx context.Context, uow repository.Session, postID, requesterID uuid.UUID) error {
	post, err := uow.Posts().Get(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewError(ErrNotFound, "Post not found")
		}
		return err
	}
	if post.UserID != requesterID {
		return NewError(ErrForbidden, "Not authorized to delete this post")
	}

	if err := uow.Posts().Delete(ctx, postID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewError(ErrNotFound, "Post not found")
		}
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{"post_id": postID, "user_id": requesterID}).Info("post deleted")
	return nil
}
