package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// OperatorClaims identifies whoever calls the operator API.
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}

var ErrOperatorTokenInvalid = errors.New("operator token invalid")

// JwtGenerate signs an HS256 operator token for subject valid for lifespan.
func JwtGenerate(secret []byte, subject, role string, lifespan time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("API_SECRET is not set")
	}
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &OperatorClaims{
		Role: role,
		StandardClaims: jwt.StandardClaims{
			Subject:   subject,
			ExpiresAt: now.Add(lifespan).Unix(),
			IssuedAt:  now.Unix(),
		},
	})
	return t.SignedString(secret)
}

func JwtValidate(secret []byte, token string) (*OperatorClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &OperatorClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOperatorTokenInvalid, err)
	}
	claims, ok := parsed.Claims.(*OperatorClaims)
	if !ok || !parsed.Valid {
		return nil, ErrOperatorTokenInvalid
	}
	return claims, nil
}
