package middleware

import (
	"errors"
	"net/http"
	"strings"

	"rental_app_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	ContextAdminID    = "adminID"
	ContextAdminEmail = "adminEmail"
)

// MsgAccessRestricted is the only thing a signed-in but non-allowlisted admin sees.
const MsgAccessRestricted = "Access restricted"

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(tokens *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Authorization header required", ""))
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid authorization header format. Use Bearer <token>", ""))
			return
		}

		claims, err := tokens.ValidateToken(parts[1])
		if err != nil {
			utils.LogWarn(err, "AuthMiddleware: token rejected", map[string]interface{}{"path": c.FullPath()})
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid or expired token", ""))
			return
		}

		c.Set(ContextAdminID, claims.AdminID)
		c.Set(ContextAdminEmail, strings.ToLower(claims.Email))

		c.Next()
	}
}

// AdminAllowlistMiddleware admits only admins whose token email is on the allowlist.
// It must run after AuthMiddleware.
func AdminAllowlistMiddleware(allowlist []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, email := range allowlist {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			allowed[email] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		email := c.GetString(ContextAdminEmail)
		if email == "" {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Not authenticated", ""))
			return
		}
		if _, ok := allowed[email]; !ok {
			utils.LogWarn(errors.New("email not on admin allowlist"), "AdminAllowlistMiddleware: access denied", map[string]interface{}{"email": email})
			utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, MsgAccessRestricted, ""))
			return
		}
		c.Next()
	}
}

// AdminIdentity returns the id and email stored by AuthMiddleware.
func AdminIdentity(c *gin.Context) (int64, string, bool) {
	raw, exists := c.Get(ContextAdminID)
	if !exists {
		return 0, "", false
	}
	id, ok := raw.(int64)
	if !ok {
		return 0, "", false
	}
	return id, c.GetString(ContextAdminEmail), true
}
