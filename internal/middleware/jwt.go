package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-progress-api/internal/utils"
)

// Claims is the token payload issued by the identity provider. The learner or
// admin id travels in the subject.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var errMissingSubject = errors.New("token subject is not a user id")

// JWTProtected validates HMAC signed bearer tokens and stores the caller's id
// and role in the request locals read by CurrentUserID and CurrentRole.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	)
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "bearer token required")
		}

		var claims Claims
		if _, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}); err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		userID, err := subjectID(claims.Subject)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		c.Locals("user_id", userID)
		if role := strings.ToLower(strings.TrimSpace(claims.Role)); role != "" {
			c.Locals("user_role", role)
		}

		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func subjectID(subject string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(subject), 10, 64)
	if err != nil || id == 0 {
		return 0, errMissingSubject
	}
	return uint(id), nil
}
