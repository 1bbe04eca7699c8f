package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// MediaKindFromContentType classifies an upload by its declared content type.
func MediaKindFromContentType(contentType string) MediaKind {
	if strings.HasPrefix(contentType, "video/") {
		return MediaKindVideo
	}
	return MediaKindImage
}

// Post is a single feed item backed by a file on the media host.
type Post struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Caption   string    `db:"caption"`
	URL       string    `db:"url"`
	FileType  MediaKind `db:"file_type"`
	FileName  string    `db:"file_name"`
	CreatedAt time.Time `db:"created_at"`
}
