package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"carrental/internal/logger"
	"carrental/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const principalKey = "principal"

// Claims is the bearer token payload. Tokens are issued elsewhere; this service
// only verifies them.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Auth verifies an HS256 bearer token and stores the caller as a models.Principal
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			abort(c, http.StatusUnauthorized, "Unauthorized Access")
			return
		}

		claims := &Claims{}
		if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return key, nil
		}); err != nil {
			_ = c.Error(fmt.Errorf("token rejected: %w", err))
			abort(c, http.StatusUnauthorized, "Unauthorized Access")
			return
		}

		principal, err := principalFromClaims(claims)
		if err != nil {
			_ = c.Error(err)
			abort(c, http.StatusUnauthorized, "Unauthorized Access")
			return
		}

		c.Set(principalKey, principal)
		c.Request = c.Request.WithContext(logger.ContextWithUserID(c.Request.Context(), principal.UserID))
		c.Next()
	}
}

func principalFromClaims(claims *Claims) (models.Principal, error) {
	if claims.Subject == "" {
		return models.Principal{}, errors.New("token has no subject")
	}
	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return models.Principal{}, fmt.Errorf("unknown role %q", role)
	}
	return models.Principal{UserID: claims.Subject, Role: role}, nil
}

// RequireRole lets through callers holding one of roles. Must run after Auth.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Unauthorized Access")
			return
		}
		for _, role := range roles {
			if p.Role == role {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "You have no access to this route")
	}
}

func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

// SetPrincipal is used by handler tests that bypass Auth
func SetPrincipal(c *gin.Context, p models.Principal) {
	c.Set(principalKey, p)
}
