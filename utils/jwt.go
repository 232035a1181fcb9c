package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// JWT claim names.
const (
	ClaimUserID = "user_id"
	ClaimRole   = "role"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenClaims is the validated content of an access token.
type TokenClaims struct {
	UserID string
	Role   string
}

// GenerateJWT signs an HS256 access token carrying user_id, role, iat and exp.
func GenerateJWT(secret []byte, userID, role string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		ClaimUserID: userID,
		ClaimRole:   role,
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseJWT verifies the signature and expiry and extracts the claims.
func ParseJWT(secret []byte, tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, _ := claims[ClaimUserID].(string)
	role, _ := claims[ClaimRole].(string)
	if userID == "" {
		return nil, ErrInvalidToken
	}
	if _, ok := claims["exp"]; !ok {
		return nil, ErrInvalidToken
	}
	return &TokenClaims{UserID: userID, Role: role}, nil
}
