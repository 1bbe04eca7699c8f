package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"snapfeed/internal/auth"
	"snapfeed/internal/repository/sqlstore"
	"snapfeed/internal/service"
	"snapfeed/internal/storage"
)

type stubHost struct{}

func (stubHost) Upload(_ context.Context, r io.Reader, opts storage.UploadOptions) (*storage.UploadResult, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	return &storage.UploadResult{
		URL:        "https://cdn.example.com/" + opts.FileName,
		Name:       opts.FileName,
		FileID:     "id-" + opts.FileName,
		StatusCode: http.StatusOK,
	}, nil
}

func (stubHost) Discard(context.Context, storage.UploadResult) error { return nil }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlstore.Open(sqlstore.Options{
		Driver: sqlstore.DialectSQLite,
		Path:   filepath.Join(t.TempDir(), "http.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSchema(context.Background()))

	tokens, err := auth.NewManager(auth.Config{Secret: "http-test-secret"})
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	users := service.NewUserService(tokens, service.LogNotifier{Logger: logger}, logger)
	posts := service.NewPostService(stubHost{}, service.PostServiceConfig{TempDir: t.TempDir(), Tag: "backend_upload", Logger: logger})

	static := fstest.MapFS{
		"index.html":    {Data: []byte("<html>snapfeed</html>")},
		"static/app.js": {Data: []byte("console.log('hi')")},
	}

	router := gin.New()
	NewHandler(store, users, posts, Options{Static: static, Logger: logger}).RegisterRoutes(router)
	return router
}

func do(t *testing.T, router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, token string, body any) *http.Request {
	var r io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func registerAndLogin(t *testing.T, router http.Handler, email, password string) string {
	t.Helper()
	rec := do(t, router, jsonRequest(http.MethodPost, "/auth/register", "", gin.H{"email": email, "password": password}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	form := url.Values{"username": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/auth/jwt/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = do(t, router, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tok := decode[TokenResponse](t, rec)
	require.Equal(t, "bearer", tok.TokenType)
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

func uploadRequest(t *testing.T, token, fileName, contentType, caption string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("caption", caption))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestFeedScenario(t *testing.T) {
	router := newTestRouter(t)
	tokenA := registerAndLogin(t, router, "a@x.com", "pw1")
	tokenB := registerAndLogin(t, router, "b@x.com", "pw2")

	rec := do(t, router, uploadRequest(t, tokenA, "pic.jpg", "image/jpeg", "hello", []byte("jpeg-bytes")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	post := decode[PostResponse](t, rec)
	require.Equal(t, "hello", post.Caption)
	require.Equal(t, "image", string(post.FileType))
	require.NotEmpty(t, post.CreatedAt)

	rec = do(t, router, jsonRequest(http.MethodGet, "/feed", tokenB, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decode[FeedResponse](t, rec)
	require.Len(t, feed.Posts, 1)
	require.Equal(t, "a@x.com", feed.Posts[0].Email)
	require.False(t, feed.Posts[0].IsOwner)
	require.Equal(t, post.ID, feed.Posts[0].ID)

	rec = do(t, router, jsonRequest(http.MethodGet, "/feed", tokenA, nil))
	feed = decode[FeedResponse](t, rec)
	require.True(t, feed.Posts[0].IsOwner)

	rec = do(t, router, jsonRequest(http.MethodDelete, "/post/"+post.ID.String(), tokenB, nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "Not authorized to delete this post", decode[map[string]string](t, rec)["detail"])

	rec = do(t, router, jsonRequest(http.MethodDelete, "/post/"+post.ID.String(), tokenA, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[map[string]any](t, rec)
	require.Equal(t, true, result["success"])
	require.Equal(t, "Post deleted successfully", result["message"])

	rec = do(t, router, jsonRequest(http.MethodDelete, "/post/"+post.ID.String(), tokenA, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, jsonRequest(http.MethodGet, "/feed", tokenA, nil))
	require.Empty(t, decode[FeedResponse](t, rec).Posts)
}

func TestAuthErrors(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "a@x.com", "pw1")

	rec := do(t, router, jsonRequest(http.MethodGet, "/feed", "", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = do(t, router, jsonRequest(http.MethodGet, "/feed", "not-a-token", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, jsonRequest(http.MethodDelete, "/post/not-a-uuid", token, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, jsonRequest(http.MethodPost, "/auth/register", "", gin.H{"email": "a@x.com", "password": "pw1"}))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "REGISTER_USER_ALREADY_EXISTS", decode[map[string]string](t, rec)["detail"])

	rec = do(t, router, jsonRequest(http.MethodPost, "/auth/register", "", gin.H{"email": "not-an-email", "password": "pw1"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, jsonRequest(http.MethodPost, "/auth/jwt/login", "", gin.H{"email": "a@x.com", "password": "nope"}))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, jsonRequest(http.MethodPost, "/auth/jwt/login", "", gin.H{"email": "a@x.com", "password": "pw1"}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, jsonRequest(http.MethodPost, "/auth/jwt/logout", token, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUsersMe(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "a@x.com", "pw1")

	rec := do(t, router, jsonRequest(http.MethodGet, "/users/me", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[UserResponse](t, rec)
	require.Equal(t, "a@x.com", me.Email)
	require.True(t, me.IsActive)
	require.NotContains(t, rec.Body.String(), "password")

	rec = do(t, router, jsonRequest(http.MethodPatch, "/users/me", token, gin.H{"email": "new@x.com"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "new@x.com", decode[UserResponse](t, rec).Email)

	rec = do(t, router, jsonRequest(http.MethodPatch, "/users/me", token, gin.H{"email": "nope"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, jsonRequest(http.MethodPost, "/auth/forgot-password", "", gin.H{"email": "nobody@x.com"}))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, router, jsonRequest(http.MethodPost, "/auth/verify", "", gin.H{"token": "garbage"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VERIFY_USER_BAD_TOKEN", decode[map[string]string](t, rec)["detail"])
}

func TestUploadRequiresFile(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "a@x.com", "pw1")

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := do(t, router, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndStatic(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = do(t, router, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "snapfeed")

	rec = do(t, router, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "console.log")

	rec = do(t, router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}
