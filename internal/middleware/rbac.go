package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingua-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/lingua-scheduler-api/pkg/errors"
	"github.com/noah-isme/lingua-scheduler-api/pkg/response"
)

// RoleSelf lets a caller through when the named query parameter equals their own user id.
const RoleSelf = "SELF"

// RBAC enforces role-based access control for routes.
func RBAC(allowed ...string) gin.HandlerFunc {
	return rbac("", allowed...)
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}

// SelfOrRoles admits the listed roles unconditionally and anyone else only when the
// query parameter is empty or names the caller. Empty means "my own data" for non-staff.
func SelfOrRoles(param string, roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, 0, len(roles)+1)
	for _, r := range roles {
		allowed = append(allowed, string(r))
	}
	return rbac(param, append(allowed, RoleSelf)...)
}

func rbac(selfParam string, allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
	for _, a := range allowed {
		if a == RoleSelf {
			allowSelf = true
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf && selfParam != "" {
			target := c.Query(selfParam)
			if target == "" {
				q := c.Request.URL.Query()
				q.Set(selfParam, claims.UserID)
				c.Request.URL.RawQuery = q.Encode()
				c.Next()
				return
			}
			if target == claims.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
