package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/natours/natours-api/internal/domain/entity"
	handlers "github.com/natours/natours-api/internal/interface/http"
	"github.com/natours/natours-api/internal/interface/middleware"
)

type NotificationModule struct {
	Handler *handlers.NotificationHandler
	Guard   *middleware.AuthGuard
	RDB     *redis.Client
	Logger  *logrus.Logger
}

func NewNotificationModule(h *handlers.NotificationHandler, guard *middleware.AuthGuard, rdb *redis.Client, logger *logrus.Logger) *NotificationModule {
	return &NotificationModule{Handler: h, Guard: guard, RDB: rdb, Logger: logger}
}

func (m *NotificationModule) Register(rg *gin.RouterGroup) {
	g := rg.Group("/notifications")
	g.Use(
		m.Guard.Protect(),
		middleware.RestrictTo(entity.RoleAdmin),
		middleware.RateLimit(m.RDB, middleware.RateRule{Max: 60, Window: time.Minute, Key: middleware.KeyByAccount()}, m.Logger),
	)
	g.POST("/send", m.Handler.Send)
}
