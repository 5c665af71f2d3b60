package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/schoolsuite/sms-core-api/internal/models"
	appErrors "github.com/schoolsuite/sms-core-api/pkg/errors"
	"github.com/schoolsuite/sms-core-api/pkg/response"
)

// RequireRoles allows only the listed roles past this point. The principal
// must already be attached by the JWT middleware.
func RequireRoles(roles ...models.PrincipalRole) gin.HandlerFunc {
	allowed := make(map[models.PrincipalRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
