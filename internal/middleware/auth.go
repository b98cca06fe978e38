package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/SoccerCoachBack/internal/apperr"
	"github.com/saeid-a/SoccerCoachBack/internal/auth"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
	"github.com/saeid-a/SoccerCoachBack/pkg/utils"
)

const identityKey = "identity"

// AuthRequired verifies the access token and stores the caller's identity.
// Websocket clients cannot set headers, so a token query parameter is
// accepted as well.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c)
		if err != nil {
			return err
		}

		claims, err := utils.ValidateAccessToken(tokenString, secret)
		if err != nil {
			return apperr.Authentication("Invalid or expired token")
		}

		userID, err := strconv.ParseInt(claims.UserID, 10, 64)
		if err != nil || userID <= 0 {
			return apperr.Authentication("Invalid or expired token")
		}
		role, ok := models.ParseRole(claims.Role)
		if !ok {
			return apperr.Authentication("Invalid or expired token")
		}

		SetIdentity(c, &auth.Identity{
			UserID: userID,
			Email:  claims.Email,
			Role:   role,
		})
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", apperr.Authentication(auth.MessageAuthenticationRequired)
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", apperr.Authentication("Invalid authorization header format")
	}
	return parts[1], nil
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := auth.Authorize(IdentityFrom(c), roles...); err != nil {
			return err
		}
		return c.Next()
	}
}

func SetIdentity(c *fiber.Ctx, identity *auth.Identity) {
	c.Locals(identityKey, identity)
}

// IdentityFrom returns nil on routes not guarded by AuthRequired.
func IdentityFrom(c *fiber.Ctx) *auth.Identity {
	identity, _ := c.Locals(identityKey).(*auth.Identity)
	return identity
}
