package postgres

import (
	"context"
	"errors"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostgresRefreshTokenRepo is the refresh token ledger.
type PostgresRefreshTokenRepo struct {
	db *gorm.DB
}

func NewPostgresRefreshTokenRepo(db *gorm.DB) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: db}
}

func (p *PostgresRefreshTokenRepo) Record(ctx context.Context, t model.RefreshToken) error {
	row := refreshTokenRow{
		UserID:    t.UserID,
		Token:     t.TokenHash,
		ExpiredAt: t.ExpiredAt.UTC(),
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return customErrors.WrapInternal(err, "RecordRefreshToken")
	}
	return nil
}

func (p *PostgresRefreshTokenRepo) FindValid(ctx context.Context, userID uuid.UUID, tokenHash string, now time.Time) (model.RefreshToken, error) {
	q := p.db.WithContext(ctx).Where("user_id = ? AND expired_at >= ?", userID, now.UTC())
	if tokenHash != "" {
		q = q.Where("token = ?", tokenHash)
	}

	var row refreshTokenRow
	res := q.Order("expired_at DESC").First(&row)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.RefreshToken{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.RefreshToken{}, customErrors.WrapInternal(err, "FindValidRefreshToken")
	}

	return model.RefreshToken{
		ID:        row.ID,
		UserID:    row.UserID,
		TokenHash: row.Token,
		ExpiredAt: row.ExpiredAt,
	}, nil
}

func (p *PostgresRefreshTokenRepo) Revoke(ctx context.Context, tokenHash string) (bool, error) {
	res := p.db.WithContext(ctx).Where("token = ?", tokenHash).Delete(&refreshTokenRow{})
	if res.Error != nil {
		return false, customErrors.WrapInternal(res.Error, "RevokeRefreshToken")
	}
	return res.RowsAffected > 0, nil
}

func (p *PostgresRefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	if err := p.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&refreshTokenRow{}).Error; err != nil {
		return customErrors.WrapInternal(err, "RevokeAllRefreshTokens")
	}
	return nil
}
