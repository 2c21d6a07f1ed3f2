package federated

import (
	"context"
	"fmt"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/model"
	initdata "github.com/telegram-mini-apps/init-data-golang"
)

// TelegramProvider accepts signed Mini App init data as the provider token.
// Accounts are keyed by the Telegram user id; the email is a placeholder.
type TelegramProvider struct {
	botToken string
	maxAge   time.Duration
}

func NewTelegramProvider(botToken string, maxAge time.Duration) *TelegramProvider {
	return &TelegramProvider{botToken: botToken, maxAge: maxAge}
}

func (p *TelegramProvider) Name() string { return "telegram" }

func (p *TelegramProvider) Verify(_ context.Context, token string) (Identity, error) {
	if p.botToken == "" {
		return Identity{}, fmt.Errorf("%w: telegram login is not configured", customErrors.ErrInvalidFederatedAssertion)
	}
	if err := initdata.Validate(token, p.botToken, p.maxAge); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", customErrors.ErrInvalidFederatedAssertion, err)
	}

	data, err := initdata.Parse(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: malformed init data", customErrors.ErrInvalidFederatedAssertion)
	}
	if data.User.ID == 0 {
		return Identity{}, fmt.Errorf("%w: no user in init data", customErrors.ErrInvalidFederatedAssertion)
	}

	return Identity{
		Email:      model.TelegramEmail(data.User.ID),
		GivenName:  data.User.FirstName,
		FamilyName: data.User.LastName,
		TelegramID: data.User.ID,
	}, nil
}
