package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natours/natours-api/internal/domain/entity"
	"github.com/natours/natours-api/internal/infrastructure/memory"
	"github.com/natours/natours-api/pkg/apperror"
	"github.com/natours/natours-api/pkg/helpers"
	"github.com/natours/natours-api/pkg/response"
)

func init() { gin.SetMode(gin.TestMode) }

type envelope struct {
	Status    int             `json:"status"`
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Error     json.RawMessage `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e
}

type guardFixture struct {
	now      time.Time
	accounts *memory.AccountRepository
	tokens   *helpers.TokenCodec
	cookies  *helpers.SessionCookies
	router   *gin.Engine
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	f := &guardFixture{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }
	f.accounts = memory.NewAccountRepository(memory.WithClock(clock))
	f.tokens = helpers.NewTokenCodec([]byte("test-secret"), time.Hour, helpers.WithCodecClock(clock))
	f.cookies = helpers.NewSessionCookies("jwt", "", false)
	guard := NewAuthGuard(f.tokens, f.accounts, f.cookies)

	r := gin.New()
	r.Use(RequestID(), ErrorHandler(helpers.NewNopLogger(), false))
	r.GET("/me", guard.Protect(), func(c *gin.Context) {
		a, ok := CurrentAccount(c)
		require.True(t, ok)
		fromCtx, ok := AccountFrom(c.Request.Context())
		require.True(t, ok)
		assert.Equal(t, a.ID, fromCtx.ID)
		response.JSON(c, http.StatusOK, gin.H{"id": a.ID}, "ok", nil)
	})
	r.GET("/admin", guard.Protect(), RestrictTo(entity.RoleAdmin, entity.RoleLeadGuide), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/admin-only", guard.Protect(), RestrictTo(entity.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/unguarded-admin", RestrictTo(entity.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	f.router = r
	return f
}

func (f *guardFixture) account(t *testing.T, role entity.Role) *entity.Account {
	t.Helper()
	a := &entity.Account{Name: "Ann", Email: string(role) + "@x.com", Role: role, PasswordHash: "h", Active: true}
	require.NoError(t, f.accounts.Create(context.Background(), a))
	return a
}

func (f *guardFixture) do(path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func TestProtect_AcceptsHeaderAndCookie(t *testing.T) {
	f := newGuardFixture(t)
	a := f.account(t, entity.RoleUser)
	token, _, err := f.tokens.Sign(a.ID)
	require.NoError(t, err)

	w := f.do("/me", bearer(token))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do("/me", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "jwt", Value: token}) })
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestProtect_HeaderWinsOverCookie(t *testing.T) {
	f := newGuardFixture(t)
	a := f.account(t, entity.RoleUser)
	token, _, err := f.tokens.Sign(a.ID)
	require.NoError(t, err)

	w := f.do("/me", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not-a-token")
		r.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ReasonMalformedToken, decode(t, w).Message)
}

func TestProtect_Rejections(t *testing.T) {
	f := newGuardFixture(t)
	a := f.account(t, entity.RoleUser)
	token, _, err := f.tokens.Sign(a.ID)
	require.NoError(t, err)

	other := helpers.NewTokenCodec([]byte("other-secret"), time.Hour, helpers.WithCodecClock(func() time.Time { return f.now }))
	forged, _, err := other.Sign(a.ID)
	require.NoError(t, err)

	gone, _, err := f.tokens.Sign("no-such-account")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*http.Request)
		reason string
	}{
		{"no token", nil, ReasonMissingToken},
		{"logout sentinel cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "jwt", Value: helpers.LoggedOutSentinel})
		}, ReasonMissingToken},
		{"garbage", bearer("abc.def"), ReasonMalformedToken},
		{"other secret", bearer(forged), ReasonInvalidSignature},
		{"unknown account", bearer(gone), ReasonAccountGone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do("/me", tc.mutate)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			e := decode(t, w)
			assert.False(t, e.Success)
			assert.Equal(t, tc.reason, e.Message)
			assert.NotEmpty(t, e.RequestID)
		})
	}

	t.Run("expired", func(t *testing.T) {
		f.now = f.now.Add(time.Hour + time.Second)
		defer func() { f.now = f.now.Add(-time.Hour - time.Second) }()
		w := f.do("/me", bearer(token))
		assert.Equal(t, ReasonTokenExpired, decode(t, w).Message)
	})
}

func TestProtect_StalePasswordAndInactive(t *testing.T) {
	f := newGuardFixture(t)
	a := f.account(t, entity.RoleUser)
	token, _, err := f.tokens.Sign(a.ID)
	require.NoError(t, err)

	changed := f.now.Add(5 * time.Second)
	_, err = f.accounts.UpdateFields(context.Background(), a.ID, entity.AccountPatch{PasswordChangedAt: &changed})
	require.NoError(t, err)
	w := f.do("/me", bearer(token))
	assert.Equal(t, ReasonStalePassword, decode(t, w).Message)

	f.now = f.now.Add(10 * time.Second)
	fresh, _, err := f.tokens.Sign(a.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, f.do("/me", bearer(fresh)).Code)

	inactive := false
	_, err = f.accounts.UpdateFields(context.Background(), a.ID, entity.AccountPatch{Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, ReasonAccountGone, decode(t, f.do("/me", bearer(fresh))).Message)
}

func TestRestrictTo(t *testing.T) {
	f := newGuardFixture(t)
	user := f.account(t, entity.RoleUser)
	lead := f.account(t, entity.RoleLeadGuide)

	userToken, _, _ := f.tokens.Sign(user.ID)
	leadToken, _, _ := f.tokens.Sign(lead.ID)

	w := f.do("/admin", bearer(userToken))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, http.StatusNoContent, f.do("/admin", bearer(leadToken)).Code)

	w = f.do("/unguarded-admin", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRestrictTo_AdminOnly(t *testing.T) {
	f := newGuardFixture(t)
	user := f.account(t, entity.RoleUser)
	admin := f.account(t, entity.RoleAdmin)
	userToken, _, _ := f.tokens.Sign(user.ID)
	adminToken, _, _ := f.tokens.Sign(admin.ID)

	w := f.do("/admin-only", bearer(userToken))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "you do not have permission to perform this action", decode(t, w).Message)
	assert.Equal(t, http.StatusNoContent, f.do("/admin-only", bearer(adminToken)).Code)
}

func TestResolve_TokenWithoutIssuedAtIsStale(t *testing.T) {
	f := newGuardFixture(t)
	a := f.account(t, entity.RoleUser)
	changed := f.now.Add(-time.Hour)
	_, err := f.accounts.UpdateFields(context.Background(), a.ID, entity.AccountPatch{PasswordChangedAt: &changed})
	require.NoError(t, err)

	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   a.ID,
		ExpiresAt: jwt.NewNumericDate(f.now.Add(time.Hour)),
	})
	token, err := raw.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	guard := NewAuthGuard(f.tokens, f.accounts, f.cookies)
	_, err = guard.Resolve(context.Background(), token)
	assert.Equal(t, apperror.KindUnauthenticated, apperror.KindOf(err))
	assert.Equal(t, ReasonStalePassword, apperror.MessageOf(err), "a missing iat counts as issued before any change")
}

func TestErrorHandler(t *testing.T) {
	build := func(dev bool, err error) *httptest.ResponseRecorder {
		r := gin.New()
		r.Use(RequestID(), ErrorHandler(helpers.NewNopLogger(), dev), Recovery())
		r.GET("/x", func(c *gin.Context) {
			if err == nil {
				panic("boom")
			}
			Abort(c, err)
		})
		r.NoRoute(NotFound())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		return w
	}

	t.Run("validation carries fields", func(t *testing.T) {
		w := build(false, apperror.Validation(map[string]string{"email": "is required"}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		e := decode(t, w)
		assert.JSONEq(t, `{"email":"is required"}`, string(e.Error))
	})
	t.Run("internal hides detail in production", func(t *testing.T) {
		w := build(false, errors.New("db exploded"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		e := decode(t, w)
		assert.Equal(t, internalMessage, e.Message)
		assert.NotContains(t, w.Body.String(), "db exploded")
	})
	t.Run("internal shows detail in development", func(t *testing.T) {
		w := build(true, errors.New("db exploded"))
		assert.Contains(t, w.Body.String(), "db exploded")
	})
	t.Run("kinds map to status", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, build(false, apperror.Conflict("dup")).Code)
		assert.Equal(t, http.StatusServiceUnavailable, build(false, apperror.New(apperror.KindServiceUnavailable, "x")).Code)
		assert.Equal(t, http.StatusUnauthorized, build(false, apperror.New(apperror.KindWrongPassword, "x")).Code)
	})
	t.Run("panic", func(t *testing.T) {
		w := build(false, nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, internalMessage, decode(t, w).Message)
	})
	t.Run("no route", func(t *testing.T) {
		r := gin.New()
		r.Use(ErrorHandler(helpers.NewNopLogger(), false))
		r.NoRoute(NotFound())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, decode(t, w).Message, "/nope")
	})
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(response.RequestIDKey)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "7f1c2a5e-8a0f-4f61-9d1e-3f0c2b8f4a11")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "7f1c2a5e-8a0f-4f61-9d1e-3f0c2b8f4a11", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "<script>")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Body.String())
}

func TestRealIPAndKeys(t *testing.T) {
	r := gin.New()
	r.Use(RealIP())
	var ipKey, pathKey, accountKey string
	var private bool
	r.GET("/p/:id", func(c *gin.Context) {
		ipKey = KeyByIP()(c)
		pathKey = KeyByIPAndPath()(c)
		accountKey = KeyByAccount()(c)
		private = AllowPrivateIP()(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/p/1", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "rl:ip:203.0.113.7", ipKey)
	assert.Equal(t, "rl:path:/p/:id:ip:203.0.113.7", pathKey)
	assert.Equal(t, "rl:account:anon:ip:203.0.113.7", accountKey)
	assert.False(t, private)

	req = httptest.NewRequest(http.MethodGet, "/p/1", nil)
	req.Header.Set("CF-Connecting-IP", "192.168.1.5")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "rl:ip:192.168.1.5", ipKey)
	assert.True(t, private)
}

func TestRateLimit_DisabledWithoutRedis(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(nil, RateRule{Max: 1, Window: time.Minute, Key: KeyByIP()}, nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}
