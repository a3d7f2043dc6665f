package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"firmware-ota-server/internal/config"
	"firmware-ota-server/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := logger.Init("test"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func adminRouter(cfg *config.AdminConfig) *gin.Engine {
	router := gin.New()
	admin := router.Group("/admin", AdminAuthMiddleware(cfg))
	admin.GET("/ping", func(c *gin.Context) {
		user, _ := c.Get("admin_user")
		c.String(http.StatusOK, "hello %v", user)
	})
	return router
}

func doAdminRequest(router *gin.Engine, username, password string, withAuth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	if withAuth {
		req.SetBasicAuth(username, password)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdminAuthAcceptsValidCredentials(t *testing.T) {
	router := adminRouter(&config.AdminConfig{Username: "admin", Password: "s3cret"})

	w := doAdminRequest(router, "admin", "s3cret", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello admin", w.Body.String())
}

func TestAdminAuthRejectsWrongPassword(t *testing.T) {
	router := adminRouter(&config.AdminConfig{Username: "admin", Password: "s3cret"})

	w := doAdminRequest(router, "admin", "wrong", true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
}

func TestAdminAuthRejectsWrongUsername(t *testing.T) {
	router := adminRouter(&config.AdminConfig{Username: "admin", Password: "s3cret"})

	w := doAdminRequest(router, "root", "s3cret", true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuthRequiresHeader(t *testing.T) {
	router := adminRouter(&config.AdminConfig{Username: "admin", Password: "s3cret"})

	w := doAdminRequest(router, "", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
}

func TestAdminAuthUnconfiguredReturnsServiceUnavailable(t *testing.T) {
	router := adminRouter(&config.AdminConfig{})

	w := doAdminRequest(router, "admin", "s3cret", true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminAuthBcryptHashTakesPrecedence(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	router := adminRouter(&config.AdminConfig{
		Username:     "admin",
		Password:     "ignored-plaintext",
		PasswordHash: string(hash),
	})

	assert.Equal(t, http.StatusOK, doAdminRequest(router, "admin", "s3cret", true).Code)
	assert.Equal(t, http.StatusUnauthorized, doAdminRequest(router, "admin", "ignored-plaintext", true).Code)
}
