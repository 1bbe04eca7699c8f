package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"snapfeed/internal/domain"
	"snapfeed/internal/service"
)

type PostResponse struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Caption   string           `json:"caption"`
	URL       string           `json:"url"`
	FileType  domain.MediaKind `json:"file_type"`
	FileName  string           `json:"file_name"`
	CreatedAt string           `json:"created_at"`
}

type FeedPostResponse struct {
	PostResponse
	IsOwner bool   `json:"is_owner"`
	Email   string `json:"email"`
}

type FeedResponse struct {
	Posts []FeedPostResponse `json:"posts"`
}

func postToResponse(p domain.Post) PostResponse {
	return PostResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		Caption:   p.Caption,
		URL:       p.URL,
		FileType:  p.FileType,
		FileName:  p.FileName,
		CreatedAt: p.CreatedAt.Format(time.RFC3339Nano),
	}
}

func (h *Handler) upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		badRequest(c, "file is unreadable")
		return
	}
	defer file.Close()

	post, err := h.posts.Ingest(c.Request.Context(), sessionFrom(c), currentUser(c), service.UploadInput{
		File:        file,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Caption:     c.PostForm("caption"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, postToResponse(*post))
}

func (h *Handler) feed(c *gin.Context) {
	entries, err := h.posts.ListFeed(c.Request.Context(), sessionFrom(c), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := FeedResponse{Posts: make([]FeedPostResponse, len(entries))}
	for i := range entries {
		resp.Posts[i] = FeedPostResponse{
			PostResponse: postToResponse(entries[i].Post),
			IsOwner:      entries[i].IsOwner,
			Email:        entries[i].Email,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) deletePost(c *gin.Context) {
	id, err := uuid.Parse(c.Param("post_id"))
	if err != nil {
		badRequest(c, "Invalid post ID")
		return
	}

	if err := h.posts.DeletePost(c.Request.Context(), sessionFrom(c), id, currentUser(c).ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Post deleted successfully"})
}
