package serverutils

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const UserIDLocal = "user_id"

var errInvalidToken = errors.New("invalid token")

// ParseToken validates tokenStr against secret and returns its user_id claim.
func ParseToken(secret, tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errInvalidToken
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errInvalidToken
	}
	return userID, nil
}

// BearerToken returns the token from an "Authorization: Bearer" header, or
// from the token query parameter for clients that cannot set headers.
func BearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[7:]
	}
	return ctx.Query("token")
}

// JwtMiddleware requires a valid token and stores its user id in locals.
// With an empty secret the request passes through and callers supply the
// user id themselves.
func JwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if secret == "" {
			return ctx.Next()
		}

		tokenStr := BearerToken(ctx)
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse("Missing token"))
		}

		userID, err := ParseToken(secret, tokenStr)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse("Invalid token"))
		}

		ctx.Locals(UserIDLocal, userID)
		return ctx.Next()
	}
}

// ResolveUserID prefers the authenticated user id over the one in the request.
func ResolveUserID(ctx *fiber.Ctx, requested string) string {
	if userID, ok := ctx.Locals(UserIDLocal).(string); ok && userID != "" {
		return userID
	}
	return strings.TrimSpace(requested)
}
