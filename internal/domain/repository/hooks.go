package repository

import (
	"context"

	"github.com/natours/natours-api/internal/domain/entity"
)

// NormalizeAccount is the beforeSave hook every account store registers.
func NormalizeAccount(_ context.Context, a *entity.Account) error {
	a.Email = entity.NormalizeEmail(a.Email)
	if a.Role == "" {
		a.Role = entity.RoleUser
	}
	return nil
}
