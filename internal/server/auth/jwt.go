// Package auth issues and verifies the HS256 access tokens carried in the
// access_token cookie.
package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/keybud/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller. It is resolved once per request
// and passed explicitly to every operation that needs it.
type Identity struct {
	UserID   int64
	Username string
}

// Claims carries the user id in the standard subject claim plus the
// username for display.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

func GenerateToken(id Identity, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Username: id.Username,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns the identity it carries.
// Every failure matches common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return Identity{}, common.ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad subject %q", common.ErrInvalidToken, claims.Subject)
	}

	return Identity{UserID: userID, Username: claims.Username}, nil
}
