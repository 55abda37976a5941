package helpers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// LoggedOutSentinel replaces the token on logout. It is never a valid token.
	LoggedOutSentinel = "loggedout"
	LogoutCookieTTL   = 10 * time.Second
)

// SessionCookies writes and reads the http-only cookie carrying the session token.
type SessionCookies struct {
	Name   string
	Domain string
	Secure bool
}

func NewSessionCookies(name, domain string, secure bool) *SessionCookies {
	if name == "" {
		name = "jwt"
	}
	return &SessionCookies{Name: name, Domain: domain, Secure: secure}
}

// Set stores token for ttl, which should be the token codec's TTL so the
// cookie and the token expire together.
func (m *SessionCookies) Set(c *gin.Context, token string, ttl time.Duration) {
	m.Write(c, CookieInstruction{Value: token, MaxAge: ttl})
}

// CookieInstruction is a cookie value the client should hold for MaxAge.
type CookieInstruction struct {
	Value  string
	MaxAge time.Duration
}

// LogoutInstruction replaces the token with the sentinel and a short expiry
// so the client drops it.
func LogoutInstruction() CookieInstruction {
	return CookieInstruction{Value: LoggedOutSentinel, MaxAge: LogoutCookieTTL}
}

// Write applies ins to the session cookie.
func (m *SessionCookies) Write(c *gin.Context, ins CookieInstruction) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.Name, ins.Value, max(int(ins.MaxAge.Seconds()), 0), "/", m.Domain, m.Secure, true)
}

func (m *SessionCookies) Clear(c *gin.Context) { m.Write(c, LogoutInstruction()) }

// Token returns the cookie's token. The logout sentinel reads as no token.
func (m *SessionCookies) Token(c *gin.Context) (string, bool) {
	v, err := c.Cookie(m.Name)
	if err != nil || v == "" || v == LoggedOutSentinel {
		return "", false
	}
	return v, true
}
