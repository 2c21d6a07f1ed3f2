package postgres

import (
	"context"
	"errors"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/model"
	"gorm.io/gorm"
)

type PostgresResetRepo struct {
	db *gorm.DB
}

func NewPostgresResetRepo(db *gorm.DB) *PostgresResetRepo {
	return &PostgresResetRepo{db: db}
}

func (p *PostgresResetRepo) Create(ctx context.Context, r model.PasswordResetRequest) error {
	row := passwordResetRow{
		Email:     r.Email,
		Token:     r.TokenHash,
		ExpiresAt: r.ExpiresAt.UTC(),
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return customErrors.ErrAlreadyExists
		}
		return customErrors.WrapInternal(err, "CreatePasswordReset")
	}
	return nil
}

func (p *PostgresResetRepo) Consume(ctx context.Context, tokenHash string, now time.Time) (model.PasswordResetRequest, error) {
	now = now.UTC()

	var row passwordResetRow
	res := p.db.WithContext(ctx).
		Where("token = ? AND consumed_at IS NULL AND expires_at >= ?", tokenHash, now).
		First(&row)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.PasswordResetRequest{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.PasswordResetRequest{}, customErrors.WrapInternal(err, "FindPasswordReset")
	}

	// the guard on consumed_at makes the second of two racing requests lose
	upd := p.db.WithContext(ctx).
		Model(&passwordResetRow{}).
		Where("id = ? AND consumed_at IS NULL", row.ID).
		Update("consumed_at", now)
	if err := upd.Error; err != nil {
		return model.PasswordResetRequest{}, customErrors.WrapInternal(err, "ConsumePasswordReset")
	}
	if upd.RowsAffected != 1 {
		return model.PasswordResetRequest{}, customErrors.ErrNotFound
	}

	return model.PasswordResetRequest{
		ID:         row.ID,
		Email:      row.Email,
		TokenHash:  row.Token,
		ExpiresAt:  row.ExpiresAt,
		ConsumedAt: &now,
	}, nil
}
