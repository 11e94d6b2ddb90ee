// Package auth issues and verifies the signed session tokens presented on
// protected requests.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token is malformed, expired, or not
// signed with the configured key.
var ErrInvalidToken = errors.New("invalid token")

// Claims binds a user identity and role to the standard expiry claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID int    `json:"uid"`
	Role   string `json:"role"`
}

// Issue produces a signed HS256 token for the given identity and role,
// expiring after ttl.
func Issue(userID int, role string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
		Role:   role,
	})
	return token.SignedString(secret)
}

// Verify parses and validates a token string, returning the embedded claims.
func Verify(tokenString string, secret []byte) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if !token.Valid || claims.UserID < 1 {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
