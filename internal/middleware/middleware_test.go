package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/civic-connect/portal/internal/auth"
	"github.com/civic-connect/portal/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTSetsIdentity(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	u := &models.User{ID: uuid.New(), Username: "asha", Role: models.RoleAdmin}
	token, err := svc.Generate(u)
	require.NoError(t, err)

	r := gin.New()
	r.Use(JWT(svc))
	r.GET("/me", func(c *gin.Context) {
		role, _ := Role(c)
		c.String(http.StatusOK, UserID(c).String()+" "+string(role)+" "+c.GetString(ContextUsername))
	})

	w := get(r, "/me", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, u.ID.String()+" admin asha", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "garbage").Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserIDOutsideJWT(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, uuid.Nil, UserID(c))
}

func TestRequireRole(t *testing.T) {
	withRole := func(role models.Role) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			if role != "" {
				c.Set(ContextUserRole, role)
			}
			c.Next()
		})
		r.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	assert.Equal(t, http.StatusOK, get(withRole(models.RoleAdmin), "/admin", "").Code)
	assert.Equal(t, http.StatusForbidden, get(withRole(models.RoleResident), "/admin", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(withRole(""), "/admin", "").Code)
}

func TestRateLimitPerUser(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	current := alice

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserID, current)
		c.Next()
	})
	r.GET("/feed/messages", RateLimit("feed_poll", 0.001, 2), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(r, "/feed/messages", "").Code)
	assert.Equal(t, http.StatusOK, get(r, "/feed/messages", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/feed/messages", "").Code)

	current = bob
	assert.Equal(t, http.StatusOK, get(r, "/feed/messages", "").Code)
}

func TestRateLimitDisabled(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit("x", 0, 0), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusOK, get(r, "/x", "").Code)
	}
}

func TestLoggerSkipsQuietPathsOnSuccess(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(Logger(zap.New(core), "/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/feed", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	get(r, "/health", "")
	get(r, "/feed", "")
	get(r, "/boom", "")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "/feed", entries[0].ContextMap()["path"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS("http://localhost:3000"))
	r.GET("/feed", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/feed", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
