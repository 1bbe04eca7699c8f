package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaKindFromContentType(t *testing.T) {
	cases := map[string]MediaKind{
		"video/mp4":       MediaKindVideo,
		"video/quicktime": MediaKindVideo,
		"image/jpeg":      MediaKindImage,
		"image/png":       MediaKindImage,
		"":                MediaKindImage,
		"application/pdf": MediaKindImage,
		"Video/mp4":       MediaKindImage,
	}
	for contentType, want := range cases {
		assert.Equal(t, want, MediaKindFromContentType(contentType), contentType)
	}
}
