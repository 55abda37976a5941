package repository

import (
	"context"
	"errors"
	"time"

	"github.com/natours/natours-api/internal/domain/entity"
	"github.com/natours/natours-api/pkg/query"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already in use")
)

// FindOptions adjusts a lookup. By default soft-deleted accounts are hidden.
type FindOptions struct {
	IncludeInactive bool
}

type FindOption func(*FindOptions)

// IncludeInactive makes soft-deleted accounts visible; administrative paths only.
func IncludeInactive() FindOption {
	return func(o *FindOptions) { o.IncludeInactive = true }
}

// ResolveFindOptions folds opts into a FindOptions value.
func ResolveFindOptions(opts ...FindOption) FindOptions {
	var o FindOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// AccountRepository is the credential store. Every method hides inactive
// accounts unless IncludeInactive is passed. UpdateFields is atomic per record.
type AccountRepository interface {
	FindByID(ctx context.Context, id string, opts ...FindOption) (*entity.Account, error)
	FindByEmail(ctx context.Context, email string, opts ...FindOption) (*entity.Account, error)
	// FindByResetToken returns the account whose reset hash matches and whose
	// ticket expires after now.
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*entity.Account, error)
	Create(ctx context.Context, a *entity.Account) error
	UpdateFields(ctx context.Context, id string, patch entity.AccountPatch, opts ...FindOption) (*entity.Account, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, spec query.Spec, opts ...FindOption) (query.Result, error)
}
