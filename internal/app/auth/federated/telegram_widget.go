package federated

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	telegramloginwidget "github.com/LipsarHQ/go-telegram-login-widget"
	customErrors "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/model"
)

// допускаем небольшое расхождение часов с Telegram
const widgetClockSkew = time.Minute

var widgetFields = []string{"id", "first_name", "last_name", "username", "photo_url", "auth_date", "hash"}

// TelegramWidgetProvider accepts the Login Widget callback parameters,
// URL-encoded into a single provider token.
type TelegramWidgetProvider struct {
	botToken string
	maxAge   time.Duration
}

func NewTelegramWidgetProvider(botToken string, maxAge time.Duration) *TelegramWidgetProvider {
	return &TelegramWidgetProvider{botToken: botToken, maxAge: maxAge}
}

func (p *TelegramWidgetProvider) Name() string { return "telegram-widget" }

func (p *TelegramWidgetProvider) Verify(_ context.Context, token string) (Identity, error) {
	if p.botToken == "" {
		return Identity{}, fmt.Errorf("%w: telegram login is not configured", customErrors.ErrInvalidFederatedAssertion)
	}
	raw, err := url.ParseQuery(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: malformed widget payload", customErrors.ErrInvalidFederatedAssertion)
	}

	// Только поля виджета: лишние параметры в подпись не входят.
	q := url.Values{}
	for _, k := range widgetFields {
		if v := raw.Get(k); v != "" {
			q.Set(k, v)
		}
	}

	authData, err := telegramloginwidget.NewFromQuery(q)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: malformed widget payload", customErrors.ErrInvalidFederatedAssertion)
	}
	if err := authData.Check(p.botToken); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", customErrors.ErrInvalidFederatedAssertion, err)
	}

	tgID, err := strconv.ParseInt(q.Get("id"), 10, 64)
	if err != nil || tgID == 0 {
		return Identity{}, fmt.Errorf("%w: no user in widget payload", customErrors.ErrInvalidFederatedAssertion)
	}
	authDate, err := strconv.ParseInt(q.Get("auth_date"), 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad auth_date", customErrors.ErrInvalidFederatedAssertion)
	}
	age := time.Since(time.Unix(authDate, 0))
	if age > p.maxAge || age < -widgetClockSkew {
		return Identity{}, fmt.Errorf("%w: widget payload expired", customErrors.ErrInvalidFederatedAssertion)
	}

	return Identity{
		Email:      model.TelegramEmail(tgID),
		GivenName:  q.Get("first_name"),
		FamilyName: q.Get("last_name"),
		TelegramID: tgID,
	}, nil
}
