// Package auth signs and verifies the bearer tokens of the admin API.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/dmitrijs2005/megarelay/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the Telegram id of the admin the token was issued to.
type Claims struct {
	jwt.RegisteredClaims
	AdminID int64 `json:"admin_id"`
}

const issuer = "megarelay"

func GenerateToken(adminID int64, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(adminID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		AdminID: adminID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns the admin id it was issued to.
func ParseToken(tokenString string, secretKey []byte) (int64, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, common.ErrTokenExpired
		}
		return 0, err
	}

	if !token.Valid {
		return 0, common.ErrInvalidToken
	}

	return claims.AdminID, nil
}
