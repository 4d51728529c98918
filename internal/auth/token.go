// Package auth mints the bearer tokens the host presents to controller
// endpoints.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the host identity claims carried by a controller token.
type Claims struct {
	ServerID string `json:"server_id"`
	jwt.RegisteredClaims
}

// GenerateHostToken signs an HS256 token identifying this host to a
// controller. The controller verifies it with the shared secret.
func GenerateHostToken(secret, serverID string, expiration time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("token secret is required")
	}

	now := time.Now()
	claims := Claims{
		ServerID: serverID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "foundry-host",
			Subject:   serverID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseHostToken verifies a host token and returns its claims. Controller
// implementations embedded in tests use it to check what the host sent.
func ParseHostToken(secret, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid host token: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid host token")
	}
	return claims, nil
}
