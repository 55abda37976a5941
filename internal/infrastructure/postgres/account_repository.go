package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/natours/natours-api/internal/domain/entity"
	"github.com/natours/natours-api/internal/domain/repository"
	"github.com/natours/natours-api/pkg/lifecycle"
	"github.com/natours/natours-api/pkg/query"
)

const uniqueViolation = "23505"

// AccountsTable whitelists the attributes list queries may touch.
var AccountsTable = &Table{
	Name: "accounts",
	Columns: map[string]Column{
		"id":                   {Expr: "id::text", Kind: KindText},
		"name":                 {Expr: "name", Kind: KindText},
		"email":                {Expr: "email", Kind: KindText},
		"photo":                {Expr: "photo", Kind: KindText},
		"role":                 {Expr: "role", Kind: KindText},
		"active":               {Expr: "active", Kind: KindBool},
		"createdAt":            {Expr: "created_at", Kind: KindTime},
		"updatedAt":            {Expr: "updated_at", Kind: KindTime},
		"passwordChangedAt":    {Expr: "password_changed_at", Kind: KindTime},
		"passwordHash":         {Expr: "password_hash", Kind: KindText, Hidden: true},
		"passwordResetToken":   {Expr: "password_reset_token", Kind: KindText, Hidden: true},
		"passwordResetExpires": {Expr: "password_reset_expires", Kind: KindTime, Hidden: true},
	},
	TieBreak: "id ASC",
}

const accountColumns = `id::text, name, email, photo, role, password_hash, password_changed_at,
	password_reset_token, password_reset_expires, active, created_at, updated_at`

type AccountHooks = lifecycle.Hooks[entity.Account, *Select]

type AccountRepository struct {
	pool  *pgxpool.Pool
	hooks *AccountHooks
}

var _ repository.AccountRepository = (*AccountRepository)(nil)

type AccountOption func(*AccountRepository)

// WithAfterSave registers an extra afterSave hook, e.g. search indexing.
func WithAfterSave(fn lifecycle.DocFunc[entity.Account]) AccountOption {
	return func(r *AccountRepository) { r.hooks.OnSave(lifecycle.AfterSave, fn) }
}

func NewAccountRepository(pool *pgxpool.Pool, opts ...AccountOption) *AccountRepository {
	r := &AccountRepository{pool: pool, hooks: lifecycle.New[entity.Account, *Select]()}
	r.hooks.
		OnSave(lifecycle.BeforeSave, repository.NormalizeAccount).
		OnBeforeQuery(activeOnly)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *AccountRepository) Hooks() *AccountHooks { return r.hooks }

func activeOnly(_ context.Context, q *Select, scope lifecycle.Scope) *Select {
	if scope.IncludeInactive {
		return q
	}
	return q.Where(query.Predicate{Field: "active", Op: query.OpEq, Value: "true"})
}

func scopeOf(opts []repository.FindOption) lifecycle.Scope {
	return lifecycle.Scope{IncludeInactive: repository.ResolveFindOptions(opts...).IncludeInactive}
}

func (r *AccountRepository) findOne(ctx context.Context, q *Select, scope lifecycle.Scope) (*entity.Account, error) {
	sql, args, err := r.hooks.RunBeforeQuery(ctx, q, scope).Limit(1).BuildWith(accountColumns)
	if err != nil {
		return nil, err
	}
	return scanAccount(r.pool.QueryRow(ctx, sql, args...))
}

func (r *AccountRepository) FindByID(ctx context.Context, id string, opts ...repository.FindOption) (*entity.Account, error) {
	q := From(AccountsTable).Where(query.Predicate{Field: "id", Op: query.OpEq, Value: id})
	return r.findOne(ctx, q, scopeOf(opts))
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string, opts ...repository.FindOption) (*entity.Account, error) {
	q := From(AccountsTable).Where(query.Predicate{Field: "email", Op: query.OpEq, Value: entity.NormalizeEmail(email)})
	return r.findOne(ctx, q, scopeOf(opts))
}

func (r *AccountRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*entity.Account, error) {
	if tokenHash == "" {
		return nil, repository.ErrNotFound
	}
	q := From(AccountsTable).
		Where(query.Predicate{Field: "passwordResetToken", Op: query.OpEq, Value: tokenHash}).
		Where(query.Predicate{Field: "passwordResetExpires", Op: query.OpGt, Value: now.UTC().Format(time.RFC3339Nano)})
	return r.findOne(ctx, q, lifecycle.Scope{})
}

func (r *AccountRepository) Create(ctx context.Context, a *entity.Account) error {
	if err := r.hooks.RunSave(ctx, lifecycle.BeforeSave, a); err != nil {
		return err
	}
	resetHash, resetExp := resetColumns(a)
	row := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (name, email, photo, role, password_hash, password_changed_at,
			password_reset_token, password_reset_expires, active)
		VALUES ($1, $2, COALESCE(NULLIF($3, ''), 'default.jpg'), $4, $5, $6, $7, $8, $9)
		RETURNING id::text, photo, created_at, updated_at
	`, a.Name, a.Email, a.Photo, string(a.Role), a.PasswordHash, a.PasswordChangedAt, resetHash, resetExp, a.Active)

	if err := row.Scan(&a.ID, &a.Photo, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return translate(err)
	}
	return r.hooks.RunSave(ctx, lifecycle.AfterSave, a)
}

// UpdateFields locks the row, checks the patch precondition, applies the
// patch and beforeSave hooks, and writes every mutable column back in one
// transaction.
func (r *AccountRepository) UpdateFields(ctx context.Context, id string, patch entity.AccountPatch, opts ...repository.FindOption) (*entity.Account, error) {
	q := r.hooks.RunBeforeQuery(ctx, From(AccountsTable).Where(query.Predicate{Field: "id", Op: query.OpEq, Value: id}), scopeOf(opts))
	sel, args, err := q.Limit(1).BuildWith(accountColumns)
	if err != nil {
		return nil, err
	}

	var a *entity.Account
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cur, err := scanAccount(tx.QueryRow(ctx, sel+" FOR UPDATE", args...))
		if err != nil {
			return err
		}
		if err := patch.Check(cur); err != nil {
			return err
		}
		patch.ApplyTo(cur)
		if err := r.hooks.RunSave(ctx, lifecycle.BeforeSave, cur); err != nil {
			return err
		}
		resetHash, resetExp := resetColumns(cur)
		row := tx.QueryRow(ctx, `
			UPDATE accounts
			SET name = $1, email = $2, photo = $3, role = $4, password_hash = $5,
				password_changed_at = $6, password_reset_token = $7, password_reset_expires = $8,
				active = $9, updated_at = NOW()
			WHERE id = $10::uuid
			RETURNING updated_at
		`, cur.Name, cur.Email, cur.Photo, string(cur.Role), cur.PasswordHash,
			cur.PasswordChangedAt, resetHash, resetExp, cur.Active, cur.ID)
		if err := row.Scan(&cur.UpdatedAt); err != nil {
			return translate(err)
		}
		a = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := r.hooks.RunSave(ctx, lifecycle.AfterSave, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id::text = $1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List runs spec against the visible columns. When the page is past the end
// the window count is unavailable, so the total comes from a COUNT query.
func (r *AccountRepository) List(ctx context.Context, spec query.Spec, opts ...repository.FindOption) (query.Result, error) {
	scope := scopeOf(opts)
	q := query.Apply(r.hooks.RunBeforeQuery(ctx, ListFrom(AccountsTable), scope), spec)
	sql, args, err := q.Build()
	if err != nil {
		return query.Result{}, err
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return query.Result{}, err
	}
	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return query.Result{}, err
	}

	var total int64
	for _, rec := range records {
		if n, ok := rec[totalColumn].(int64); ok {
			total = n
		}
		delete(rec, totalColumn)
	}
	if len(records) == 0 && q.Offset() > 0 {
		countSQL, countArgs, err := q.BuildCount()
		if err != nil {
			return query.Result{}, err
		}
		if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
			return query.Result{}, err
		}
	}
	if err := r.hooks.RunAfterQuery(ctx, records, scope); err != nil {
		return query.Result{}, err
	}
	return query.Result{Records: records, Count: len(records), Total: total}, nil
}

func resetColumns(a *entity.Account) (*string, *time.Time) {
	if a.Reset == nil {
		return nil, nil
	}
	h, exp := a.Reset.TokenHash, a.Reset.ExpiresAt
	return &h, &exp
}

func scanAccount(row pgx.Row) (*entity.Account, error) {
	var (
		a         entity.Account
		role      string
		resetHash *string
		resetExp  *time.Time
	)
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Photo, &role, &a.PasswordHash, &a.PasswordChangedAt,
		&resetHash, &resetExp, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	a.Role = entity.Role(role)
	if resetHash != nil && resetExp != nil {
		a.Reset = &entity.ResetTicket{TokenHash: *resetHash, ExpiresAt: *resetExp}
	}
	return &a, nil
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrDuplicateEmail
	}
	return err
}
