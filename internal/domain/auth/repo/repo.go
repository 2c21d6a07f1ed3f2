package repo

import (
	"context"
	"time"

	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/model"
	"github.com/google/uuid"
)

// UserRepo returns errors.ErrNotFound for missing users and
// errors.ErrAlreadyExists when the email is taken.
type UserRepo interface {
	CreateUser(ctx context.Context, u model.User) (uuid.UUID, error)

	GetUserByEmail(ctx context.Context, email string) (model.User, error)

	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)

	GetUserByTelegramID(ctx context.Context, id int64) (model.User, error)

	// SetTOTPSecret stores the secret only if none is set yet and reports
	// whether this call stored it.
	SetTOTPSecret(ctx context.Context, id uuid.UUID, secret string) (bool, error)

	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

// RefreshTokenRepo is the refresh token ledger. Entries are keyed by
// model.TokenDigest of the token, never the token itself.
type RefreshTokenRepo interface {
	Record(ctx context.Context, t model.RefreshToken) error

	// FindValid returns an entry of the user with ExpiredAt >= now. An empty
	// hash matches any entry of the user. errors.ErrNotFound otherwise.
	FindValid(ctx context.Context, userID uuid.UUID, tokenHash string, now time.Time) (model.RefreshToken, error)

	// Revoke deletes the entry and reports whether it existed; a missing
	// entry is not an error.
	Revoke(ctx context.Context, tokenHash string) (bool, error)

	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

type ResetRepo interface {
	Create(ctx context.Context, r model.PasswordResetRequest) error

	// Consume marks an unexpired, unconsumed request as used. It succeeds at
	// most once per token; errors.ErrNotFound otherwise.
	Consume(ctx context.Context, tokenHash string, now time.Time) (model.PasswordResetRequest, error)
}

// EnrollmentRepo keeps provisional TOTP secrets until the first successful
// verification.
type EnrollmentRepo interface {
	SavePending(ctx context.Context, userID uuid.UUID, secret string, ttl time.Duration) error

	GetPending(ctx context.Context, userID uuid.UUID) (string, error)

	DeletePending(ctx context.Context, userID uuid.UUID) error
}
