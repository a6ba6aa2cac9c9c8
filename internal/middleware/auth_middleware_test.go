package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rental_app_backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtectedEngine(tokens *utils.TokenManager, allowlist []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/secret", AuthMiddleware(tokens), AdminAllowlistMiddleware(allowlist), func(c *gin.Context) {
		id, email, ok := AdminIdentity(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "email": email, "ok": ok, "data": "applications"})
	})
	return r
}

func doGet(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error utils.APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestAuthMiddleware_RejectsMissingAndBadTokens(t *testing.T) {
	tokens := utils.NewTokenManager("secret", time.Hour)
	r := newProtectedEngine(tokens, []string{"admin@choiceproperties.com"})

	w := doGet(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, utils.ErrCodeUnauthorized, errorCode(t, w))

	w = doGet(r, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other := utils.NewTokenManager("other-secret", time.Hour)
	token, _, err := other.GenerateAccessToken(1, "admin@choiceproperties.com")
	require.NoError(t, err)
	w = doGet(r, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAllowlistMiddleware(t *testing.T) {
	tokens := utils.NewTokenManager("secret", time.Hour)
	r := newProtectedEngine(tokens, []string{" Admin@ChoiceProperties.com "})

	allowedToken, _, err := tokens.GenerateAccessToken(7, "ADMIN@choiceproperties.com")
	require.NoError(t, err)
	w := doGet(r, allowedToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"admin@choiceproperties.com"`)
	assert.Contains(t, w.Body.String(), `"id":7`)

	deniedToken, _, err := tokens.GenerateAccessToken(8, "intruder@example.com")
	require.NoError(t, err)
	w = doGet(r, deniedToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, utils.ErrCodeForbidden, errorCode(t, w))
	assert.Contains(t, w.Body.String(), MsgAccessRestricted)
	assert.NotContains(t, w.Body.String(), "applications")
}
