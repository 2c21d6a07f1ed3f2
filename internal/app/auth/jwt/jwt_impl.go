package jwt

import (
	"crypto/rsa"
	"os"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/errors"
	jwt2 "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type JwtUtilImpl struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   string
	now        func() time.Time
}

type Option func(*JwtUtilImpl)

// WithClock replaces time.Now for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(j *JwtUtilImpl) { j.now = now }
}

func NewJWTUtil(cfg *config.Config, opts ...Option) (*JwtUtilImpl, error) {
	privPem, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "read private key")
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privPem)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "parse private key")
	}

	pubPem, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "read public key")
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPem)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "parse public key")
	}

	j := &JwtUtilImpl{
		privateKey: privKey,
		publicKey:  pubKey,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

func (j *JwtUtilImpl) GenerateAccessToken(userID uuid.UUID) (string, time.Time, string, error) {
	return j.generate(userID, jwt2.UseAccess, j.accessTTL)
}

func (j *JwtUtilImpl) GenerateRefreshToken(userID uuid.UUID) (string, time.Time, string, error) {
	return j.generate(userID, jwt2.UseRefresh, j.refreshTTL)
}

func (j *JwtUtilImpl) generate(userID uuid.UUID, use string, ttl time.Duration) (token string, exp time.Time, jti string, err error) {
	jti = uuid.NewString()
	now := j.now()

	claims := jwt2.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    j.issuer,
			Audience:  jwt.ClaimStrings{j.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
		TokenUse: use,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(j.privateKey)
	if err != nil {
		return "", time.Time{}, "", customErrors.WrapInternal(err, "sign "+use+" token")
	}

	return signed, claims.ExpiresAt.Time, jti, nil
}

func (j *JwtUtilImpl) ValidateAccessToken(raw string) (jwt2.Claims, error) {
	return j.validate(raw, jwt2.UseAccess)
}

func (j *JwtUtilImpl) ValidateRefreshToken(raw string) (jwt2.Claims, error) {
	return j.validate(raw, jwt2.UseRefresh)
}

// validate has no leeway: a token is rejected from its exp second on.
func (j *JwtUtilImpl) validate(raw, use string) (jwt2.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}

	token, err := jwt.ParseWithClaims(raw, &jwt2.Claims{}, func(t *jwt.Token) (interface{}, error) {
		return j.publicKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return jwt2.Claims{}, customErrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt2.Claims)
	if !ok || claims.TokenUse != use {
		return jwt2.Claims{}, customErrors.ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return jwt2.Claims{}, customErrors.ErrInvalidToken
	}

	return *claims, nil
}
