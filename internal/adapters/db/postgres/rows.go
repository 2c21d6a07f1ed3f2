package postgres

import (
	"errors"
	"time"

	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Row types mirror scripts/db/migrations; they never leave this package.

type userRow struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	FirstName    string    `gorm:"not null;default:''"`
	LastName     string    `gorm:"not null;default:''"`
	TelegramID   *int64    `gorm:"uniqueIndex"`
	PasswordHash string    `gorm:"not null"`
	TOTPSecret   string    `gorm:"column:totp_secret;not null;default:''"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) toModel() model.User {
	var tgID int64
	if r.TelegramID != nil {
		tgID = *r.TelegramID
	}
	return model.User{
		ID:           r.ID,
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		TelegramID:   tgID,
		PasswordHash: r.PasswordHash,
		TOTPSecret:   r.TOTPSecret,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type refreshTokenRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"`
	Token     string    `gorm:"uniqueIndex;not null"`
	ExpiredAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}

func (refreshTokenRow) TableName() string { return "refresh_tokens" }

type passwordResetRow struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Email      string    `gorm:"index;not null"`
	Token      string    `gorm:"uniqueIndex;not null"`
	ExpiresAt  time.Time `gorm:"not null"`
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

func (passwordResetRow) TableName() string { return "password_resets" }

// Models lists the row types, for AutoMigrate in tests.
func Models() []any {
	return []any{&userRow{}, &refreshTokenRow{}, &passwordResetRow{}}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
