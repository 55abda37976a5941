package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/natours/natours-api/config"
	"github.com/natours/natours-api/internal/domain/entity"
	repo "github.com/natours/natours-api/internal/domain/repository"
	pginfra "github.com/natours/natours-api/internal/infrastructure/postgres"
	"github.com/natours/natours-api/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)

	email := flag.String("email", "admin@natours.io", "admin email")
	password := flag.String("password", "password123", "admin password")
	name := flag.String("name", "Admin", "admin name")
	flag.Parse()

	ctx := context.Background()
	pool, err := pginfra.NewPool(ctx, pginfra.PoolConfig{DSN: cfg.PostgresDSN(), MaxConns: 2})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()
	if err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}

	accounts := pginfra.NewAccountRepository(pool)
	hasher := helpers.NewPasswordHasher(cfg.BcryptCost)

	if existing, err := accounts.FindByEmail(ctx, entity.NormalizeEmail(*email), repo.IncludeInactive()); err == nil {
		fmt.Printf("account already exists: id=%s email=%s role=%s\n", existing.ID, existing.Email, existing.Role)
		return
	} else if !errors.Is(err, repo.ErrNotFound) {
		logger.WithError(err).Fatal("lookup failed")
	}

	hash, err := hasher.Hash(ctx, *password)
	if err != nil {
		logger.WithError(err).Fatal("failed to hash password")
	}
	a := &entity.Account{
		Name:         *name,
		Email:        entity.NormalizeEmail(*email),
		Role:         entity.RoleAdmin,
		PasswordHash: hash,
		Active:       true,
	}
	if err := accounts.Create(ctx, a); err != nil {
		logger.WithError(err).Fatal("failed to seed admin")
	}
	fmt.Printf("seeded admin: id=%s email=%s password=%s\n", a.ID, a.Email, *password)
}
