package http

import (
	"io/fs"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"snapfeed/internal/repository"
	"snapfeed/internal/service"
)

// Options configures the HTTP surface.
type Options struct {
	// Static holds index.html and the client assets. Nil disables the SPA routes.
	Static       fs.FS
	AllowOrigins []string
	Logger       logrus.FieldLogger
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	store   repository.Store
	users   service.UserService
	posts   service.PostService
	static  fs.FS
	origins []string
	logger  logrus.FieldLogger
}

func NewHandler(store repository.Store, users service.UserService, posts service.PostService, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		store:   store,
		users:   users,
		posts:   posts,
		static:  opts.Static,
		origins: opts.AllowOrigins,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger))
	router.Use(corsMiddleware(h.origins))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	uow := h.unitOfWork()
	authed := h.requireUser()

	authGroup := router.Group("/auth", uow)
	{
		authGroup.POST("/jwt/login", h.login)
		authGroup.POST("/jwt/logout", authed, h.logout)
		authGroup.POST("/register", h.register)
		authGroup.POST("/forgot-password", h.forgotPassword)
		authGroup.POST("/reset-password", h.resetPassword)
		authGroup.POST("/request-verify-token", h.requestVerifyToken)
		authGroup.POST("/verify", h.verify)
	}

	users := router.Group("/users", authed, uow)
	{
		users.GET("/me", h.me)
		users.PATCH("/me", h.updateMe)
	}

	api := router.Group("/", authed, uow)
	{
		api.POST("/upload", h.upload)
		api.GET("/feed", h.feed)
		api.DELETE("/post/:post_id", h.deletePost)
	}

	if h.static != nil {
		h.registerStatic(router)
	}
}
