package middleware

import (
	"net"

	"github.com/gin-gonic/gin"

	"github.com/natours/natours-api/internal/domain/entity"
)

// AllowPrivateIP bypasses the limit for loopback and private addresses.
func AllowPrivateIP() AllowFunc {
	return func(c *gin.Context) bool {
		ip := net.ParseIP(clientIP(c))
		return ip != nil && (ip.IsLoopback() || ip.IsPrivate())
	}
}

// AllowRoles bypasses the limit for authenticated accounts holding one of roles.
func AllowRoles(roles ...entity.Role) AllowFunc {
	return func(c *gin.Context) bool {
		a, ok := CurrentAccount(c)
		return ok && a.HasRole(roles...)
	}
}

// AnyOf combines allow funcs.
func AnyOf(fns ...AllowFunc) AllowFunc {
	return func(c *gin.Context) bool {
		for _, fn := range fns {
			if fn != nil && fn(c) {
				return true
			}
		}
		return false
	}
}
