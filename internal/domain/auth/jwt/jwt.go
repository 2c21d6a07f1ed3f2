package jwt

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"time"
)

const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

type Claims struct {
	jwt.RegisteredClaims
	TokenUse string `json:"token_use"`
}

type JWTUtil interface {
	GenerateAccessToken(userID uuid.UUID) (token string, exp time.Time, jti string, err error)
	GenerateRefreshToken(userID uuid.UUID) (token string, exp time.Time, jti string, err error)
	ValidateAccessToken(token string) (claims Claims, err error)
	ValidateRefreshToken(token string) (claims Claims, err error)
}
