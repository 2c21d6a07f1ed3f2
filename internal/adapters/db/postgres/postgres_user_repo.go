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

type PostgresUserRepo struct {
	db *gorm.DB
}

func NewPostgresUserRepo(db *gorm.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func (p *PostgresUserRepo) CreateUser(ctx context.Context, user model.User) (uuid.UUID, error) {
	row := userRow{
		ID:           user.ID,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		PasswordHash: user.PasswordHash,
		TOTPSecret:   user.TOTPSecret,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
	// NULL keeps the unique index out of the way for unlinked accounts
	if user.TelegramID != 0 {
		row.TelegramID = &user.TelegramID
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	res := p.db.WithContext(ctx).Create(&row)
	if err := res.Error; err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, customErrors.ErrAlreadyExists
		}
		return uuid.Nil, customErrors.WrapInternal(err, "CreateUser")
	}
	return row.ID, nil
}

func (p *PostgresUserRepo) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return p.first(ctx, "GetUserByEmail", "email = ?", email)
}

func (p *PostgresUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return p.first(ctx, "GetUserByID", "id = ?", id)
}

func (p *PostgresUserRepo) GetUserByTelegramID(ctx context.Context, id int64) (model.User, error) {
	return p.first(ctx, "GetUserByTelegramID", "telegram_id = ?", id)
}

func (p *PostgresUserRepo) first(ctx context.Context, op, where string, arg any) (model.User, error) {
	var u userRow
	res := p.db.WithContext(ctx).Where(where, arg).First(&u)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.User{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.User{}, customErrors.WrapInternal(err, op)
	}
	return u.toModel(), nil
}

func (p *PostgresUserRepo) SetTOTPSecret(ctx context.Context, id uuid.UUID, secret string) (bool, error) {
	res := p.db.WithContext(ctx).
		Model(&userRow{}).
		Where("id = ? AND totp_secret = ''", id).
		Updates(map[string]any{"totp_secret": secret, "updated_at": time.Now().UTC()})
	if err := res.Error; err != nil {
		return false, customErrors.WrapInternal(err, "SetTOTPSecret")
	}
	return res.RowsAffected == 1, nil
}

func (p *PostgresUserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	res := p.db.WithContext(ctx).
		Model(&userRow{}).
		Where("id = ?", id).
		Updates(map[string]any{"password_hash": hash, "updated_at": time.Now().UTC()})
	if err := res.Error; err != nil {
		return customErrors.WrapInternal(err, "UpdatePasswordHash")
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrNotFound
	}
	return nil
}
