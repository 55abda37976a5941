package router

import (
	"github.com/natours/natours-api/internal/application"
	"github.com/natours/natours-api/internal/container"
	handlers "github.com/natours/natours-api/internal/interface/http"
	"github.com/natours/natours-api/internal/interface/middleware"
	"github.com/natours/natours-api/internal/router/modules"
)

// Deps are the services and handlers shared by the modules.
type Deps struct {
	Guard         *middleware.AuthGuard
	Sessions      *application.SessionService
	Accounts      *application.AccountService
	Notifications *application.NotificationService

	AuthHandler         *handlers.AuthHandler
	AccountHandler      *handlers.AccountHandler
	NotificationHandler *handlers.NotificationHandler
}

// BuildDeps wires services and handlers from the container singletons.
func BuildDeps() Deps {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	accounts := container.GetAccounts()
	cookies := container.GetCookies()

	sessions := application.NewSessionService(
		accounts,
		container.GetHasher(),
		container.GetTokens(),
		container.GetDispatcher(),
		cfg.Auth(),
		logger,
		application.WithAppName(cfg.AppName),
	)

	var photos application.PhotoStorage
	if p := container.GetPhotos(); p != nil {
		photos = p
	}
	var searcher application.AccountSearcher
	if x := container.GetSearchIndex(); x != nil {
		searcher = x
	}
	accountSvc := application.NewAccountService(accounts, photos, searcher, logger)
	notifySvc := application.NewNotificationService(container.GetDispatcher(), logger)

	return Deps{
		Guard:               middleware.NewAuthGuard(container.GetTokens(), accounts, cookies),
		Sessions:            sessions,
		Accounts:            accountSvc,
		Notifications:       notifySvc,
		AuthHandler:         handlers.NewAuthHandler(sessions, cookies, logger, cfg.ResetPasswordURL),
		AccountHandler:      handlers.NewAccountHandler(accountSvc, logger),
		NotificationHandler: handlers.NewNotificationHandler(notifySvc, logger),
	}
}

// InitModules registers every feature module on r. Call once during startup.
func InitModules(r *Registry) {
	d := BuildDeps()
	rdb := container.GetRedis()
	logger := container.GetLogger()

	r.Add(
		modules.NewAuthModule(d.AuthHandler, d.Guard, rdb, logger),
		modules.NewAccountModule(d.AccountHandler, d.Guard, rdb, logger),
		modules.NewNotificationModule(d.NotificationHandler, d.Guard, rdb, logger),
	)
	if container.GetConfig().DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(rdb, logger))
	}
}
