package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/services"
	"github.com/sitepass/sitepass-backend/internal/tenant"
)

const tenantContextKey = "tenantContext"

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), authService: authService}
}

// RequireAuth validates the bearer token and stores the tenant context for
// handlers. Optional roles restrict who may pass.
func (am *AuthMiddleware) RequireAuth(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    apperr.CodeTokenInvalid,
				"message": "missing or invalid token",
			})
			return
		}
		tctx, err := am.authService.ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    apperr.CodeOf(err),
				"message": err.Error(),
			})
			return
		}
		if len(roles) > 0 && !roleAllowed(tctx.Role, roles) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    apperr.CodePermissionDenied,
				"message": "insufficient role",
			})
			return
		}
		c.Set(tenantContextKey, tctx)
		c.Next()
	}
}

func roleAllowed(role string, allowed []string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// TenantFrom returns the tenant context stored by RequireAuth.
func TenantFrom(c *gin.Context) (tenant.Context, bool) {
	v, ok := c.Get(tenantContextKey)
	if !ok {
		return tenant.Context{}, false
	}
	tctx, ok := v.(tenant.Context)
	return tctx, ok
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	return ""
}
