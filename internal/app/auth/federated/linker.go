// Package federated maps identities asserted by external providers to local
// users.
package federated

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/app/auth/password"
	customErrors "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/model"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/repo"
	"github.com/google/uuid"
)

// Identity is what a provider vouches for. A non-zero TelegramID is the
// account key; otherwise the email is.
type Identity struct {
	Email      string
	GivenName  string
	FamilyName string
	TelegramID int64
}

type Provider interface {
	Name() string
	// Verify fails with ErrInvalidFederatedAssertion when the token does not
	// validate or carries no usable identity.
	Verify(ctx context.Context, token string) (Identity, error)
}

type Linker struct {
	users     repo.UserRepo
	hasher    password.Hasher
	providers map[string]Provider
	fallback  string
}

// NewLinker uses the first provider when a request names none.
func NewLinker(users repo.UserRepo, hasher password.Hasher, providers ...Provider) *Linker {
	l := &Linker{
		users:     users,
		hasher:    hasher,
		providers: make(map[string]Provider, len(providers)),
	}
	for i, p := range providers {
		if i == 0 {
			l.fallback = p.Name()
		}
		l.providers[p.Name()] = p
	}
	return l
}

func (l *Linker) Exchange(ctx context.Context, provider, token string) (model.User, error) {
	if provider == "" {
		provider = l.fallback
	}
	p, ok := l.providers[provider]
	if !ok {
		return model.User{}, fmt.Errorf("%w: unknown provider %q", customErrors.ErrInvalidFederatedAssertion, provider)
	}
	if strings.TrimSpace(token) == "" {
		return model.User{}, fmt.Errorf("%w: empty token", customErrors.ErrInvalidFederatedAssertion)
	}

	id, err := p.Verify(ctx, token)
	if err != nil {
		return model.User{}, err
	}
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return model.User{}, fmt.Errorf("%w: no email in payload", customErrors.ErrInvalidFederatedAssertion)
	}
	if id.TelegramID == 0 && model.IsReservedEmail(email) {
		return model.User{}, fmt.Errorf("%w: reserved email domain", customErrors.ErrInvalidFederatedAssertion)
	}

	find := func() (model.User, error) { return l.users.GetUserByEmail(ctx, email) }
	if id.TelegramID != 0 {
		find = func() (model.User, error) { return l.users.GetUserByTelegramID(ctx, id.TelegramID) }
	}

	user, err := find()
	switch {
	case err == nil:
		return user, nil
	case !errors.Is(err, customErrors.ErrNotFound):
		return model.User{}, customErrors.WrapInternal(err, "find federated user")
	}

	// The hash only fills the column: nobody knows the pre-image, so the
	// password path stays closed for this account.
	digest := sha256.Sum256([]byte(token))
	passHash, err := l.hasher.Hash(hex.EncodeToString(digest[:]))
	if err != nil {
		return model.User{}, customErrors.WrapInternal(err, "hash provider token")
	}

	user = model.User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    id.GivenName,
		LastName:     id.FamilyName,
		TelegramID:   id.TelegramID,
		PasswordHash: passHash,
	}
	if _, err := l.users.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, customErrors.ErrAlreadyExists) {
			return model.User{}, customErrors.WrapInternal(err, "CreateUser")
		}
		// a parallel first login created the user, or the email belongs to
		// an account this identity does not own
		existing, getErr := find()
		switch {
		case getErr == nil:
			return existing, nil
		case errors.Is(getErr, customErrors.ErrNotFound):
			return model.User{}, fmt.Errorf("%w: email taken by another account", customErrors.ErrInvalidFederatedAssertion)
		default:
			return model.User{}, customErrors.WrapInternal(getErr, "find federated user")
		}
	}
	return user, nil
}
