package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/natours/natours-api/internal/domain/entity"
	repo "github.com/natours/natours-api/internal/domain/repository"
	"github.com/natours/natours-api/pkg/apperror"
	"github.com/natours/natours-api/pkg/helpers"
)

// CtxAccountKey is the gin context key holding the authenticated account.
const CtxAccountKey = "account"

const (
	ReasonMissingToken     = "missing token"
	ReasonTokenExpired     = "token expired"
	ReasonInvalidSignature = "invalid token signature"
	ReasonMalformedToken   = "malformed token"
	ReasonAccountGone      = "account no longer exists"
	ReasonStalePassword    = "stale password"
)

type accountCtxKey struct{}

// WithAccount returns ctx carrying a.
func WithAccount(ctx context.Context, a *entity.Account) context.Context {
	return context.WithValue(ctx, accountCtxKey{}, a)
}

// AccountFrom returns the account stored by WithAccount.
func AccountFrom(ctx context.Context) (*entity.Account, bool) {
	a, ok := ctx.Value(accountCtxKey{}).(*entity.Account)
	return a, ok && a != nil
}

// CurrentAccount returns the account resolved by Protect.
func CurrentAccount(c *gin.Context) (*entity.Account, bool) {
	v, ok := c.Get(CtxAccountKey)
	if !ok {
		return nil, false
	}
	a, ok := v.(*entity.Account)
	return a, ok && a != nil
}

// AuthGuard turns a session token into the account it was issued for.
type AuthGuard struct {
	tokens   *helpers.TokenCodec
	accounts repo.AccountRepository
	cookies  *helpers.SessionCookies
}

func NewAuthGuard(tokens *helpers.TokenCodec, accounts repo.AccountRepository, cookies *helpers.SessionCookies) *AuthGuard {
	return &AuthGuard{tokens: tokens, accounts: accounts, cookies: cookies}
}

// Resolve verifies token and loads its account. Every rejection is
// Unauthenticated with one of the Reason* messages; store failures are Internal.
func (g *AuthGuard) Resolve(ctx context.Context, token string) (*entity.Account, error) {
	if token == "" {
		return nil, apperror.Unauthenticated(ReasonMissingToken)
	}
	claims, err := g.tokens.Verify(token)
	switch {
	case errors.Is(err, helpers.ErrExpiredToken):
		return nil, apperror.Unauthenticated(ReasonTokenExpired)
	case errors.Is(err, helpers.ErrInvalidSignature):
		return nil, apperror.Unauthenticated(ReasonInvalidSignature)
	case err != nil:
		return nil, apperror.Unauthenticated(ReasonMalformedToken)
	}

	a, err := g.accounts.FindByID(ctx, claims.SubjectID())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, apperror.Unauthenticated(ReasonAccountGone)
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if a.ChangedPasswordAfter(claims.IssuedAtTime()) {
		return nil, apperror.Unauthenticated(ReasonStalePassword)
	}
	return a, nil
}

// Protect requires a valid session. On success the account is available
// through CurrentAccount and AccountFrom(c.Request.Context()).
func (g *AuthGuard) Protect() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := extractToken(c, g.cookies)
		a, err := g.Resolve(c.Request.Context(), token)
		if err != nil {
			Abort(c, err)
			return
		}
		c.Set(CtxAccountKey, a)
		c.Request = c.Request.WithContext(WithAccount(c.Request.Context(), a))
		c.Next()
	}
}
