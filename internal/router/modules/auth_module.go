package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	handlers "github.com/natours/natours-api/internal/interface/http"
	"github.com/natours/natours-api/internal/interface/middleware"
)

// AuthModule serves the session endpoints under /auth.
// Public: signup, login, logout, forgotPassword, resetPassword/:token
// Protected: updateMyPassword
type AuthModule struct {
	Handler *handlers.AuthHandler
	Guard   *middleware.AuthGuard
	RDB     *redis.Client
	Logger  *logrus.Logger
}

func NewAuthModule(h *handlers.AuthHandler, guard *middleware.AuthGuard, rdb *redis.Client, logger *logrus.Logger) *AuthModule {
	return &AuthModule{Handler: h, Guard: guard, RDB: rdb, Logger: logger}
}

func (m *AuthModule) limit(max int, key middleware.KeyFunc) gin.HandlerFunc {
	return middleware.RateLimit(m.RDB, middleware.RateRule{Max: max, Window: time.Minute, Key: key}, m.Logger)
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	g := rg.Group("/auth")

	g.POST("/signup", m.limit(10, middleware.KeyByIPAndPath()), m.Handler.Signup)
	g.POST("/login", m.limit(10, middleware.KeyByIPAndPath()), m.Handler.Login)
	g.GET("/logout", m.Handler.Logout)
	g.POST("/forgotPassword", m.limit(5, middleware.KeyByIPAndPath()), m.Handler.ForgotPassword)
	g.PATCH("/resetPassword/:token", m.limit(30, middleware.KeyByIPAndPath()), m.Handler.ResetPassword)

	g.PATCH("/updateMyPassword", m.Guard.Protect(), m.limit(5, middleware.KeyByAccount()), m.Handler.UpdatePassword)
}
