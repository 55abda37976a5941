package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/natours/natours-api/pkg/helpers"
)

const bearerScheme = "bearer"

// bearerToken returns the token from "Authorization: Bearer <t>".
func bearerToken(c *gin.Context) (string, bool) {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// extractToken prefers the Authorization header and falls back to the
// session cookie.
func extractToken(c *gin.Context, cookies *helpers.SessionCookies) (string, bool) {
	if t, ok := bearerToken(c); ok {
		return t, true
	}
	if cookies == nil {
		return "", false
	}
	return cookies.Token(c)
}
