package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// DefaultTokenTTL matches the session length issued by the login endpoint.
const DefaultTokenTTL = 12 * time.Hour

// SignAdminToken mints an HS256 token carrying the admin identity. The plant
// claim is omitted for super admins so older clients keep treating the absence
// of a plant as "all plants".
func SignAdminToken(secret []byte, creds AdminCredentials, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret is required")
	}
	if creds.ID == "" || creds.Username == "" {
		return "", errors.New("id and username are required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	claims := jwt.MapClaims{
		"id":       creds.ID,
		"username": creds.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	if creds.Plant != nil && *creds.Plant != "" {
		claims["plant"] = *creds.Plant
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// HS256Verifier returns a VerifyFunc that validates HS256 tokens against the
// shared secret, rejecting any other signing algorithm.
func HS256Verifier(secret []byte) VerifyFunc {
	return func(_ context.Context, tokenString string) (map[string]interface{}, error) {
		parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return secret, nil
		})
		if err != nil {
			return nil, err
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok || !parsed.Valid {
			return nil, errors.New("invalid token claims")
		}
		return claims, nil
	}
}
