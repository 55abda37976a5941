package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/natours/natours-api/config"
	"github.com/natours/natours-api/internal/container"
	"github.com/natours/natours-api/internal/domain/entity"
	"github.com/natours/natours-api/internal/domain/notification"
	repo "github.com/natours/natours-api/internal/domain/repository"
	"github.com/natours/natours-api/internal/infrastructure/memory"
	pginfra "github.com/natours/natours-api/internal/infrastructure/postgres"
	"github.com/natours/natours-api/internal/infrastructure/search"
	"github.com/natours/natours-api/internal/interface/middleware"
	"github.com/natours/natours-api/internal/router"
	"github.com/natours/natours-api/pkg/helpers"
	"github.com/natours/natours-api/pkg/lifecycle"
	"github.com/natours/natours-api/pkg/mailer"
	"github.com/natours/natours-api/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()
	container.SetConfig(cfg)
	container.SetLogger(logger)

	// Elasticsearch is optional; without it search reports 503 and saves are not indexed.
	var afterSave lifecycle.DocFunc[entity.Account]
	if addrs := cfg.ESAddrs(); len(addrs) > 0 {
		es, err := helpers.NewESClient(ctx, helpers.ESOptions{
			Addrs:    addrs,
			Username: cfg.ElasticsearchUser,
			Password: cfg.ElasticsearchPass,
		})
		if err != nil {
			logger.WithError(err).Warn("elasticsearch disabled")
		} else {
			idx := search.NewAccountIndex(es, cfg.ESUsersIndex)
			afterSave = idx.AfterSave(logger)
			container.SetES(es)
			container.SetSearchIndex(idx)
		}
	}

	accounts, closeStore := openStore(ctx, cfg, logger, afterSave)
	defer closeStore()
	container.SetAccounts(accounts)

	if cfg.GCSBucket != "" {
		gcs, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			logger.WithError(err).Warn("photo storage disabled")
		} else {
			defer func() { _ = gcs.Close() }()
			container.SetGCS(gcs)
			container.SetPhotos(helpers.NewGCSBucket(gcs, cfg.GCSBucket))
		}
	}

	// Redis backs rate limiting only; without it limits are not enforced.
	rdb, err := helpers.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable; rate limiting disabled")
	} else {
		defer func() { _ = rdb.Close() }()
		container.SetRedis(rdb)
	}

	dispatcher, closeMail := openDispatcher(cfg, logger)
	defer closeMail()
	container.SetDispatcher(dispatcher)

	auth := cfg.Auth()
	container.SetTokens(helpers.NewTokenCodec(auth.SigningSecret, auth.TokenTTL))
	container.SetHasher(helpers.NewPasswordHasher(auth.HashCost))

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler(logger, cfg.IsDevelopment()))
	r.Use(middleware.Recovery())
	r.Use(middleware.RealIP())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowOriginFunc = func(string) bool { return cfg.IsDevelopment() }
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled || cfg.IsDevelopment() {
		r.Use(gin.Logger())
	}
	r.NoRoute(middleware.NotFound())

	reg := router.NewRegistry(r)
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	logger.Info("server exited properly")
}

func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger, afterSave lifecycle.DocFunc[entity.Account]) (repo.AccountRepository, func()) {
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory account store; data is lost on restart")
		var opts []memory.AccountOption
		if afterSave != nil {
			opts = append(opts, memory.WithAfterSave(afterSave))
		}
		return memory.NewAccountRepository(opts...), func() {}
	case "postgres":
		pool, err := pginfra.NewPool(ctx, pginfra.PoolConfig{
			DSN:             cfg.PostgresDSN(),
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			MaxConnLifetime: cfg.DBMaxConnLife,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to postgres")
		}
		if err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
			pool.Close()
			logger.WithError(err).Fatal("migration failed")
		}
		container.SetPGPool(pool)
		var opts []pginfra.AccountOption
		if afterSave != nil {
			opts = append(opts, pginfra.WithAfterSave(afterSave))
		}
		return pginfra.NewAccountRepository(pool, opts...), pool.Close
	default:
		logger.Fatalf("unknown STORE_DRIVER %q", cfg.StoreDriver)
		return nil, nil
	}
}

func openDispatcher(cfg *config.Config, logger *logrus.Logger) (notification.Dispatcher, func()) {
	switch cfg.MailTransport {
	case "queue":
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to rabbitmq")
		}
		logger.WithField("queue", cfg.RabbitMQEmailQueue).Info("mail goes through the email worker")
		return mailer.NewQueueDispatcher(pub), pub.Close
	case "mailgun":
		mg := mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
		if !mg.Configured() {
			logger.Fatal("MAIL_TRANSPORT=mailgun but Mailgun is not configured")
		}
		return mg, func() {}
	case "log", "":
		logger.Warn("mail is logged, not sent")
		return mailer.NewLogDispatcher(logger), func() {}
	default:
		logger.Fatalf("unknown MAIL_TRANSPORT %q", cfg.MailTransport)
		return nil, nil
	}
}
