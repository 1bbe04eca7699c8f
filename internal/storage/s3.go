package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type objectDeleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Options struct {
	Bucket    string
	KeyPrefix string
	// PublicBaseURL, when set, is joined with the object key to build the
	// returned URL (CDN or public bucket endpoint). Otherwise the uploader's
	// location is used.
	PublicBaseURL string
}

// S3Host stores uploads in Amazon S3 (or compatible APIs).
type S3Host struct {
	uploader objectUploader
	deleter  objectDeleter
	opts     S3Options
}

func NewS3Host(client *s3.Client, opts S3Options) *S3Host {
	return &S3Host{
		uploader: manager.NewUploader(client),
		deleter:  client,
		opts:     opts,
	}
}

func (h *S3Host) Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadResult, error) {
	if h.opts.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	key := h.objectKey(opts)
	input := &s3.PutObjectInput{
		Bucket: aws.String(h.opts.Bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Tags) > 0 {
		tags := url.Values{}
		for _, tag := range opts.Tags {
			tags.Set(tag, "true")
		}
		input.Tagging = aws.String(tags.Encode())
	}

	out, err := h.uploader.Upload(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	location := out.Location
	if base := strings.TrimRight(h.opts.PublicBaseURL, "/"); base != "" {
		location = base + "/" + key
	}
	return &UploadResult{
		URL:        location,
		Name:       key,
		FileID:     key,
		StatusCode: http.StatusOK,
	}, nil
}

func (h *S3Host) Discard(ctx context.Context, res UploadResult) error {
	if res.Name == "" {
		return fmt.Errorf("object key is required")
	}
	_, err := h.deleter.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.opts.Bucket),
		Key:    aws.String(res.Name),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", res.Name, err)
	}
	return nil
}

func (h *S3Host) objectKey(opts UploadOptions) string {
	base := path.Base(filepath.ToSlash(opts.FileName))
	if base == "." || base == "/" {
		base = ""
	}

	name := base
	if opts.UniqueName || name == "" {
		name = uuid.NewString() + strings.ToLower(path.Ext(base))
	}

	prefix := strings.Trim(h.opts.KeyPrefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

var _ Host = (*S3Host)(nil)
