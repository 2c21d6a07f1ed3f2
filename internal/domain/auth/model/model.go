package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TelegramEmailDomain holds the placeholder addresses of Telegram accounts.
// No other path may create an email in it.
const TelegramEmailDomain = "telegram.local"

// User is the identity record. An empty TOTPSecret means the second factor
// is not enrolled yet. TelegramID is zero for accounts not linked to Telegram.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	TelegramID   int64     `json:"telegram_id,omitempty"`
	PasswordHash string    `json:"-"`
	TOTPSecret   string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func TelegramEmail(telegramID int64) string {
	return fmt.Sprintf("tg%d@%s", telegramID, TelegramEmailDomain)
}

// IsReservedEmail reports whether email belongs to a domain only federated
// logins may use. email is expected to be normalized.
func IsReservedEmail(email string) bool {
	return strings.HasSuffix(email, "@"+TelegramEmailDomain)
}

func (u User) TwoFactorEnrolled() bool {
	return u.TOTPSecret != ""
}

// RefreshToken is a ledger entry. TokenHash is TokenDigest of the issued
// token. ExpiredAt is the revocation boundary for refresh operations,
// independent of the token's own exp claim.
type RefreshToken struct {
	ID        int64
	UserID    uuid.UUID
	TokenHash string
	ExpiredAt time.Time
}

type PasswordResetRequest struct {
	ID         int64
	Email      string
	TokenHash  string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// Enrollment is a freshly generated TOTP secret with its provisioning URI.
type Enrollment struct {
	Secret string
	URL    string
}

// LoginResult is the outcome of a password check. Secret and OTPAuthURL
// are set only for users that still have to enroll the second factor.
type LoginResult struct {
	UserID     uuid.UUID
	Secret     string
	OTPAuthURL string
}

type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	UserId          uuid.UUID
	RefreshTokenJTI string
}
