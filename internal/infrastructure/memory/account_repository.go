package memory

import (
	"context"
	"errors"
	"time"

	"github.com/natours/natours-api/internal/domain/entity"
	"github.com/natours/natours-api/internal/domain/repository"
	"github.com/natours/natours-api/pkg/lifecycle"
	"github.com/natours/natours-api/pkg/query"
)

// Attribute names of stored accounts. The last three never leave list queries.
const (
	fieldID                = "id"
	fieldName              = "name"
	fieldEmail             = "email"
	fieldPhoto             = "photo"
	fieldRole              = "role"
	fieldActive            = "active"
	fieldCreatedAt         = "createdAt"
	fieldUpdatedAt         = "updatedAt"
	fieldPasswordChangedAt = "passwordChangedAt"
	fieldPasswordHash      = "passwordHash"
	fieldResetToken        = "passwordResetToken"
	fieldResetExpires      = "passwordResetExpires"
)

type AccountHooks = lifecycle.Hooks[entity.Account, *Query]

type AccountRepository struct {
	coll  *Collection
	hooks *AccountHooks
	now   func() time.Time
}

var _ repository.AccountRepository = (*AccountRepository)(nil)

type AccountOption func(*AccountRepository)

// WithAfterSave registers an extra afterSave hook, e.g. search indexing.
func WithAfterSave(fn lifecycle.DocFunc[entity.Account]) AccountOption {
	return func(r *AccountRepository) { r.hooks.OnSave(lifecycle.AfterSave, fn) }
}

func WithClock(now func() time.Time) AccountOption {
	return func(r *AccountRepository) { r.now = now }
}

func NewAccountRepository(opts ...AccountOption) *AccountRepository {
	r := &AccountRepository{
		coll: NewCollection(
			WithUnique(fieldEmail),
			WithHidden(fieldPasswordHash, fieldResetToken, fieldResetExpires),
		),
		hooks: lifecycle.New[entity.Account, *Query](),
		now:   time.Now,
	}
	r.hooks.
		OnSave(lifecycle.BeforeSave, repository.NormalizeAccount).
		OnBeforeQuery(activeOnly)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hooks exposes the registry so callers can inspect or extend it at startup.
func (r *AccountRepository) Hooks() *AccountHooks { return r.hooks }

func activeOnly(_ context.Context, q *Query, scope lifecycle.Scope) *Query {
	if scope.IncludeInactive {
		return q
	}
	return q.Where(query.Predicate{Field: fieldActive, Op: query.OpEq, Value: "true"})
}

func scopeOf(opts []repository.FindOption) lifecycle.Scope {
	return lifecycle.Scope{IncludeInactive: repository.ResolveFindOptions(opts...).IncludeInactive}
}

func (r *AccountRepository) findOne(ctx context.Context, q *Query, scope lifecycle.Scope) (*entity.Account, error) {
	doc, err := r.hooks.RunBeforeQuery(ctx, q, scope).First(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return fromDocument(doc), nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string, opts ...repository.FindOption) (*entity.Account, error) {
	q := r.coll.Find().Where(query.Predicate{Field: fieldID, Op: query.OpEq, Value: id})
	return r.findOne(ctx, q, scopeOf(opts))
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string, opts ...repository.FindOption) (*entity.Account, error) {
	q := r.coll.Find().Where(query.Predicate{Field: fieldEmail, Op: query.OpEq, Value: entity.NormalizeEmail(email)})
	return r.findOne(ctx, q, scopeOf(opts))
}

func (r *AccountRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*entity.Account, error) {
	if tokenHash == "" {
		return nil, repository.ErrNotFound
	}
	q := r.coll.Find().
		Where(query.Predicate{Field: fieldResetToken, Op: query.OpEq, Value: tokenHash}).
		Where(query.Predicate{Field: fieldResetExpires, Op: query.OpGt, Value: now.UTC().Format(time.RFC3339Nano)})
	return r.findOne(ctx, q, lifecycle.Scope{})
}

func (r *AccountRepository) Create(ctx context.Context, a *entity.Account) error {
	now := r.now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if err := r.hooks.RunSave(ctx, lifecycle.BeforeSave, a); err != nil {
		return err
	}
	id, err := r.coll.Insert(toDocument(a))
	if err != nil {
		return translate(err)
	}
	a.ID = id
	return r.hooks.RunSave(ctx, lifecycle.AfterSave, a)
}

func (r *AccountRepository) UpdateFields(ctx context.Context, id string, patch entity.AccountPatch, opts ...repository.FindOption) (*entity.Account, error) {
	scope := scopeOf(opts)
	var updated *entity.Account
	_, err := r.coll.Update(id, func(d Document) error {
		a := fromDocument(d)
		if !a.Active && !scope.IncludeInactive {
			return ErrNotFound
		}
		if err := patch.Check(a); err != nil {
			return err
		}
		patch.ApplyTo(a)
		a.UpdatedAt = r.now().UTC()
		if err := r.hooks.RunSave(ctx, lifecycle.BeforeSave, a); err != nil {
			return err
		}
		clear(d)
		for k, v := range toDocument(a) {
			d[k] = v
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	if err := r.hooks.RunSave(ctx, lifecycle.AfterSave, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(r.coll.Delete(id))
}

func (r *AccountRepository) List(ctx context.Context, spec query.Spec, opts ...repository.FindOption) (query.Result, error) {
	scope := scopeOf(opts)
	q := query.Apply(r.hooks.RunBeforeQuery(ctx, r.coll.List(), scope), spec)
	res, err := q.Result(ctx)
	if err != nil {
		return query.Result{}, err
	}
	if err := r.hooks.RunAfterQuery(ctx, res.Records, scope); err != nil {
		return query.Result{}, err
	}
	return res, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return repository.ErrNotFound
	case errors.Is(err, ErrDuplicate):
		return repository.ErrDuplicateEmail
	}
	return err
}

func toDocument(a *entity.Account) Document {
	d := Document{
		fieldName:      a.Name,
		fieldEmail:     a.Email,
		fieldPhoto:     a.Photo,
		fieldRole:      string(a.Role),
		fieldActive:    a.Active,
		fieldCreatedAt: a.CreatedAt,
		fieldUpdatedAt: a.UpdatedAt,
	}
	if a.ID != "" {
		d[fieldID] = a.ID
	}
	if a.PasswordHash != "" {
		d[fieldPasswordHash] = a.PasswordHash
	}
	if a.PasswordChangedAt != nil {
		d[fieldPasswordChangedAt] = *a.PasswordChangedAt
	}
	if a.Reset != nil {
		d[fieldResetToken] = a.Reset.TokenHash
		d[fieldResetExpires] = a.Reset.ExpiresAt
	}
	return d
}

func fromDocument(d Document) *entity.Account {
	a := &entity.Account{}
	a.ID, _ = d[fieldID].(string)
	a.Name, _ = d[fieldName].(string)
	a.Email, _ = d[fieldEmail].(string)
	a.Photo, _ = d[fieldPhoto].(string)
	role, _ := d[fieldRole].(string)
	a.Role = entity.Role(role)
	a.Active, _ = d[fieldActive].(bool)
	a.CreatedAt, _ = d[fieldCreatedAt].(time.Time)
	a.UpdatedAt, _ = d[fieldUpdatedAt].(time.Time)
	a.PasswordHash, _ = d[fieldPasswordHash].(string)
	if t, ok := d[fieldPasswordChangedAt].(time.Time); ok {
		a.PasswordChangedAt = &t
	}
	hash, okHash := d[fieldResetToken].(string)
	exp, okExp := d[fieldResetExpires].(time.Time)
	if okHash && okExp {
		a.Reset = &entity.ResetTicket{TokenHash: hash, ExpiresAt: exp}
	}
	return a
}
