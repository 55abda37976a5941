// Package container holds the process-wide singletons built in main so the
// router can wire modules without threading every dependency by hand.
package container

import (
	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/natours/natours-api/config"
	"github.com/natours/natours-api/internal/domain/notification"
	repo "github.com/natours/natours-api/internal/domain/repository"
	"github.com/natours/natours-api/internal/infrastructure/search"
	"github.com/natours/natours-api/pkg/helpers"
)

var (
	cfg         *config.Config
	logger      *logrus.Logger
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
	gcsClient   *storage.Client
	esClient    *elasticsearch.Client

	accounts    repo.AccountRepository
	dispatcher  notification.Dispatcher
	tokens      *helpers.TokenCodec
	hasher      *helpers.PasswordHasher
	photos      *helpers.GCSBucket
	searchIndex *search.AccountIndex
)

func SetConfig(c *config.Config) { cfg = c }
func GetConfig() *config.Config  { return cfg }
func SetLogger(l *logrus.Logger) { logger = l }
func GetLogger() *logrus.Logger {
	if logger == nil {
		return helpers.NewNopLogger()
	}
	return logger
}
func SetPGPool(p *pgxpool.Pool)            { pgPool = p }
func GetPGPool() *pgxpool.Pool             { return pgPool }
func SetRedis(r *redis.Client)             { redisClient = r }
func GetRedis() *redis.Client              { return redisClient }
func SetGCS(s *storage.Client)             { gcsClient = s }
func GetGCS() *storage.Client              { return gcsClient }
func SetES(c *elasticsearch.Client)        { esClient = c }
func GetES() *elasticsearch.Client         { return esClient }
func SetAccounts(r repo.AccountRepository) { accounts = r }
func GetAccounts() repo.AccountRepository  { return accounts }

func SetDispatcher(d notification.Dispatcher) { dispatcher = d }
func GetDispatcher() notification.Dispatcher  { return dispatcher }

func SetTokens(t *helpers.TokenCodec)       { tokens = t }
func GetTokens() *helpers.TokenCodec        { return tokens }
func SetHasher(h *helpers.PasswordHasher)   { hasher = h }
func GetHasher() *helpers.PasswordHasher    { return hasher }
func SetPhotos(b *helpers.GCSBucket)        { photos = b }
func SetSearchIndex(x *search.AccountIndex) { searchIndex = x }
func GetSearchIndex() *search.AccountIndex  { return searchIndex }

// GetPhotos returns nil when no bucket is configured.
func GetPhotos() *helpers.GCSBucket { return photos }

// GetCookies builds the session cookie settings from the auth config.
func GetCookies() *helpers.SessionCookies {
	a := cfg.Auth()
	return helpers.NewSessionCookies(a.CookieName, a.CookieDomain, a.CookieSecure)
}
