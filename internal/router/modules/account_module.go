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

// AccountModule serves /users. Everything requires a session; the collection
// and :id routes are admin only.
type AccountModule struct {
	Handler *handlers.AccountHandler
	Guard   *middleware.AuthGuard
	RDB     *redis.Client
	Logger  *logrus.Logger
}

func NewAccountModule(h *handlers.AccountHandler, guard *middleware.AuthGuard, rdb *redis.Client, logger *logrus.Logger) *AccountModule {
	return &AccountModule{Handler: h, Guard: guard, RDB: rdb, Logger: logger}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	users := rg.Group("/users")
	users.Use(
		m.Guard.Protect(),
		middleware.RateLimit(m.RDB, middleware.RateRule{
			Max:    120,
			Window: time.Minute,
			Key:    middleware.KeyByAccount(),
			Allow:  middleware.AllowRoles(entity.RoleAdmin),
		}, m.Logger),
	)
	{
		users.GET("/me", m.Handler.GetMe)
		users.PATCH("/updateMe", m.Handler.UpdateMe)
		users.DELETE("/deleteMe", m.Handler.DeleteMe)
		users.POST("/me/photo", m.Handler.UploadPhoto)
	}

	admin := users.Group("")
	admin.Use(middleware.RestrictTo(entity.RoleAdmin))
	{
		admin.GET("", m.Handler.List)
		admin.GET("/search", m.Handler.Search)
		admin.GET("/:id", m.Handler.Get)
		admin.PATCH("/:id", m.Handler.Update)
		admin.DELETE("/:id", m.Handler.Delete)
	}
}
