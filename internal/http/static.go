package http

import (
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) registerStatic(router *gin.Engine) {
	if assets, err := fs.Sub(h.static, "static"); err == nil {
		router.StaticFS("/static", http.FS(assets))
	}

	router.GET("/", func(c *gin.Context) {
		// read directly; http.FileServer would redirect index.html to /
		index, err := fs.ReadFile(h.static, "index.html")
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": "Not found"})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", index)
	})
}
