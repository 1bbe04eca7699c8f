package storage

import (
	"context"
	"io"
)

// UploadOptions describes how the host should store a file.
type UploadOptions struct {
	FileName    string
	ContentType string
	// UniqueName asks the host to derive a collision free stored name.
	UniqueName bool
	Tags       []string
}

// UploadResult is what the host reports back. StatusCode mirrors the host's
// own HTTP status; only 200 means the file is stored.
type UploadResult struct {
	URL        string
	Name       string
	FileID     string
	StatusCode int
	Message    string
}

// Host stores media files and makes them publicly reachable.
type Host interface {
	Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadResult, error)
	// Discard removes a previously uploaded file.
	Discard(ctx context.Context, res UploadResult) error
}
