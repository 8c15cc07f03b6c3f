// Package auth signs and checks the bearer tokens that bind a client to a
// vault session.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the session and vault a token was issued for.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	VaultID   string `json:"vid"`
}

// GenerateSessionToken issues an HS256 token that expires together with the
// session.
func GenerateSessionToken(sessionID, vaultID string, secretKey []byte, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		VaultID:   vaultID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseSessionToken validates tokenString. An expired token yields
// common.ErrSessionExpired, anything else invalid common.ErrInvalidToken.
func ParseSessionToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrSessionExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.SessionID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
