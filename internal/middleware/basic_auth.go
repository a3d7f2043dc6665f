package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"firmware-ota-server/internal/config"
	"firmware-ota-server/pkg/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthMiddleware guards admin endpoints with HTTP Basic auth. Username
// and password compare in constant time; when ADMIN_PASS_HASH is configured
// it takes precedence and the password is checked against the bcrypt hash.
func AdminAuthMiddleware(cfg *config.AdminConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Username == "" || (cfg.Password == "" && cfg.PasswordHash == "") {
			utils.ErrorResponse(c, http.StatusServiceUnavailable, "Admin credentials are not configured")
			c.Abort()
			return
		}

		username, password, ok := c.Request.BasicAuth()
		if !ok {
			unauthorized(c)
			return
		}

		userOK := constantTimeEquals(username, cfg.Username)

		var passOK bool
		if cfg.PasswordHash != "" {
			passOK = bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(password)) == nil
		} else {
			passOK = constantTimeEquals(password, cfg.Password)
		}

		if !userOK || !passOK {
			unauthorized(c)
			return
		}

		c.Set("admin_user", username)
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", `Basic realm="firmware admin"`)
	utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid admin credentials")
	c.Abort()
}

// Hashing first keeps the comparison constant time even for inputs of
// different lengths.
func constantTimeEquals(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}
