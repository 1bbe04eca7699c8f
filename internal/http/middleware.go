package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"snapfeed/internal/domain"
	"snapfeed/internal/repository"
)

const (
	ctxSessionKey = "snapfeed.session"
	ctxUserKey    = "snapfeed.user"
)

var (
	httpRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of http request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)
)

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "WWW-Authenticate"},
		MaxAge:        12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// requestLogger records one line and one metrics sample per request.
func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		labels := prometheus.Labels{
			"method":      c.Request.Method,
			"path":        path,
			"status_code": strconv.Itoa(status),
		}
		httpRequestTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(elapsed.Seconds())

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  status,
			"latency": elapsed,
		}
		if v, ok := c.Get(ctxUserKey); ok {
			fields["user_id"] = v.(*domain.User).ID
		}
		entry := logger.WithFields(fields)
		if status >= http.StatusInternalServerError {
			entry.Warn("request")
			return
		}
		entry.Debug("request")
	}
}

// unitOfWork gives every request its own session and rolls back whatever
// the handler did not commit.
func (h *Handler) unitOfWork() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := h.store.Begin(c.Request.Context())
		if err != nil {
			h.respondError(c, err)
			return
		}
		defer func() {
			if err := sess.Release(); err != nil {
				h.logger.WithError(err).Warn("release session")
			}
		}()

		c.Set(ctxSessionKey, sess)
		c.Next()
	}
}

// requireUser resolves the bearer token to an active user. It uses a short
// session of its own so the lookup never holds a connection the handler needs.
func (h *Handler) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized"})
			return
		}

		sess, err := h.store.Begin(c.Request.Context())
		if err != nil {
			h.respondError(c, err)
			return
		}
		user, err := h.users.Authenticate(c.Request.Context(), sess, token)
		if rerr := sess.Release(); rerr != nil {
			h.logger.WithError(rerr).Warn("release session")
		}
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.Set(ctxUserKey, user)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func sessionFrom(c *gin.Context) repository.Session {
	return c.MustGet(ctxSessionKey).(repository.Session)
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet(ctxUserKey).(*domain.User)
}
