package middleware

import (
	"strings"

	deliverycontext "jwtauth/internal/delivery/context"
	"jwtauth/internal/domain/entity"
	domainerrors "jwtauth/internal/domain/errors"
	"jwtauth/internal/domain/service"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const bearerPrefix = "Bearer "

// AuthMiddleware provides middleware for access-token authentication and authorization.
type AuthMiddleware struct {
	codec service.AccessTokenCodec
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(codec service.AccessTokenCodec) *AuthMiddleware {
	return &AuthMiddleware{codec: codec}
}

// Authenticate requires a valid bearer access token and records the caller.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c)
		if !ok {
			return errors.Wrap(domainerrors.ErrUnauthorized, "missing bearer token")
		}

		if err := m.identify(c, token); err != nil {
			return err
		}

		return next(c)
	}
}

// Identify records the caller when a valid bearer token is present and
// lets anonymous requests through. A present but invalid token is rejected.
func (m *AuthMiddleware) Identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c)
		if !ok {
			return next(c)
		}

		if err := m.identify(c, token); err != nil {
			return err
		}

		return next(c)
	}
}

func (m *AuthMiddleware) identify(c echo.Context, token string) error {
	claims, err := m.codec.Verify(token)
	if err != nil {
		return errors.Wrap(err, "access token rejected")
	}

	deliverycontext.SetPrincipal(c, claims.Username, claims.Role)

	return nil
}

// RequireRole rejects callers without the given role.
// It must be used AFTER the Authenticate middleware.
func (m *AuthMiddleware) RequireRole(requiredRole entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_, role, ok := deliverycontext.GetPrincipal(c)
			if !ok {
				return errors.Wrap(domainerrors.ErrUnauthorized, "caller is not authenticated")
			}
			if role != requiredRole {
				return errors.Wrapf(domainerrors.ErrForbidden, "role %s required", requiredRole)
			}

			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])

	return token, token != ""
}
