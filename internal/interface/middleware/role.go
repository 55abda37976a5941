package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/natours/natours-api/internal/domain/entity"
	"github.com/natours/natours-api/pkg/apperror"
)

// RestrictTo lets the request through only for the given roles. It must run
// after Protect.
func RestrictTo(roles ...entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := CurrentAccount(c)
		if !ok {
			Abort(c, apperror.Unauthenticated(ReasonMissingToken))
			return
		}
		if !a.HasRole(roles...) {
			Abort(c, apperror.Forbidden("you do not have permission to perform this action"))
			return
		}
		c.Next()
	}
}
