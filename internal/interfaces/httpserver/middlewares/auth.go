package middlewares

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parley-server/internal/domain"
	authvalidator "parley-server/internal/infrastructure/auth"
	"parley-server/internal/interfaces/httpserver/responses"
	"parley-server/internal/utils/platformerrors"
)

const (
	principalContextKey = "principal"
	userIDContextKey    = "user_id"
	devUserHeader       = "X-User-Id"
)

// AuthMiddleware validates JWT bearer tokens against the identity provider.
// A nil validator puts the gateway in development mode: the caller identity
// is taken from the X-User-Id header instead.
func AuthMiddleware(validator *authvalidator.Validator, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if validator == nil {
			userID := strings.TrimSpace(c.GetHeader(devUserHeader))
			if userID == "" {
				responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized,
					"authentication required", "e2f4a6b8-0c1d-4e2f-8a3b-4c5d6e7f8a9c")
				return
			}
			setPrincipal(c, domain.Principal{
				ID:         userID,
				AuthMethod: domain.AuthMethodDevHeader,
				Subject:    userID,
			})
			c.Next()
			return
		}

		rawToken, err := bearerToken(c)
		if err != nil {
			logger.Warn().
				Str("path", c.FullPath()).
				Str("method", c.Request.Method).
				Msg("unauthenticated request")
			responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized,
				"authentication required", "5a7b9c1d-3e4f-4a5b-8c6d-7e8f9a0b1c2d")
			return
		}

		claims, err := validator.Validate(c.Request.Context(), rawToken)
		if err != nil {
			logger.Error().Err(err).Msg("jwt validation failed")
			responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized,
				"unauthorized", "0b2c4d6e-8f9a-4b1c-8d2e-3f4a5b6c7d8e")
			return
		}

		setPrincipal(c, domain.Principal{
			ID:         claims.Subject,
			AuthMethod: domain.AuthMethodJWT,
			Subject:    claims.Subject,
			Issuer:     claims.Issuer,
			Email:      claims.Email,
			Name:       claims.Name,
			Scopes:     claims.Scopes,
		})
		c.Next()
	}
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(c *gin.Context) (domain.Principal, bool) {
	val, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := val.(domain.Principal)
	return principal, ok
}

// GetUserIDFromContext returns the caller's user id, or "" when
// unauthenticated.
func GetUserIDFromContext(c *gin.Context) string {
	return c.GetString(userIDContextKey)
}

func setPrincipal(c *gin.Context, principal domain.Principal) {
	c.Set(principalContextKey, principal)
	c.Set(userIDContextKey, principal.ID)
	c.Writer.Header().Set("X-Principal-Id", principal.ID)
	c.Writer.Header().Set("X-Auth-Method", string(principal.AuthMethod))
}

func bearerToken(c *gin.Context) (string, error) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", errors.New("authorization header missing")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("malformed authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
