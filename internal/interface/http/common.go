package handlers

import (
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/natours/natours-api/internal/domain/entity"
	"github.com/natours/natours-api/internal/interface/middleware"
	"github.com/natours/natours-api/pkg/apperror"
	"github.com/natours/natours-api/pkg/validation"
)

// accountView is the outward shape of an account. Credentials and reset
// ticket fields are never part of it.
type accountView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Photo     string    `json:"photo,omitempty"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func viewOf(a *entity.Account) accountView {
	return accountView{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Photo:     a.Photo,
		Role:      string(a.Role),
		Active:    a.Active,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func viewsOf(as []*entity.Account) []accountView {
	out := make([]accountView, 0, len(as))
	for _, a := range as {
		out = append(out, viewOf(a))
	}
	return out
}

// bindJSON decodes the body into req. An empty body decodes as {}.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		middleware.Abort(c, apperror.Validation(validation.ToDetails(err)))
		return false
	}
	return true
}

// mustAccount returns the account resolved by the auth guard.
func mustAccount(c *gin.Context) (*entity.Account, bool) {
	a, ok := middleware.CurrentAccount(c)
	if !ok {
		middleware.Abort(c, apperror.Unauthenticated(middleware.ReasonMissingToken))
	}
	return a, ok
}
