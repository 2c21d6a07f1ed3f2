// Package reset implements the forgot-password and reset-confirm flow.
package reset

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/app/auth/password"
	customErrors "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/model"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/repo"
	logx "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/log"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	tokenBytes  = 32
	sendTimeout = 30 * time.Second
)

type Mailer interface {
	SendResetLink(ctx context.Context, to, link string) error
}

type Flow struct {
	users    repo.UserRepo
	resets   repo.ResetRepo
	ledger   repo.RefreshTokenRepo
	hasher   password.Hasher
	mailer   Mailer
	v        *validator.Validate
	log      *zap.Logger
	linkBase string
	ttl      time.Duration
	now      func() time.Time
	wg       sync.WaitGroup
}

type Option func(*Flow)

func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

func New(
	users repo.UserRepo,
	resets repo.ResetRepo,
	ledger repo.RefreshTokenRepo,
	hasher password.Hasher,
	mailer Mailer,
	v *validator.Validate,
	log *zap.Logger,
	linkBase string,
	ttl time.Duration,
	opts ...Option,
) *Flow {
	f := &Flow{
		users:    users,
		resets:   resets,
		ledger:   ledger,
		hasher:   hasher,
		mailer:   mailer,
		v:        v,
		log:      log,
		linkBase: strings.TrimRight(linkBase, "/"),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Request starts a reset for the given email and returns before any lookup,
// so neither the result nor the reply time depends on whether an account
// exists. Failures of the background job are only logged.
func (f *Flow) Request(ctx context.Context, in dto.ForgotDTO) error {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := f.v.Var(email, "required,email"); err != nil {
		f.log.Info("reset requested for malformed email")
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()
		f.send(ctx, email)
	}()
	return nil
}

// Wait blocks until reset jobs started by Request are done.
func (f *Flow) Wait() { f.wg.Wait() }

func (f *Flow) send(ctx context.Context, email string) {
	log := f.log.With(logx.Email(email))

	if _, err := f.users.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, customErrors.ErrNotFound) {
			log.Info("reset requested for unknown account")
		} else {
			log.Error("reset lookup failed", zap.Error(err))
		}
		return
	}

	token, err := newToken()
	if err != nil {
		log.Error("reset token generation failed", zap.Error(err))
		return
	}

	now := f.now().UTC()
	req := model.PasswordResetRequest{
		Email:     email,
		TokenHash: model.TokenDigest(token),
		ExpiresAt: now.Add(f.ttl),
	}
	if err := f.resets.Create(ctx, req); err != nil {
		log.Error("reset request not stored", zap.Error(err))
		return
	}

	if err := f.mailer.SendResetLink(ctx, email, f.linkBase+"/"+token); err != nil {
		log.Error("reset mail not sent", zap.Error(err))
		return
	}
	log.Info("reset link sent")
}

// Confirm sets a new password for the owner of token. Every failure,
// including an invalid new password, is ErrInvalidOrExpiredToken.
func (f *Flow) Confirm(ctx context.Context, in dto.ResetDTO) error {
	if err := f.v.Struct(in); err != nil {
		return customErrors.ErrInvalidOrExpiredToken
	}
	if len(in.Password) > password.MaxBytes {
		return customErrors.ErrInvalidOrExpiredToken
	}

	// hash first so a failure here leaves the token usable
	hash, err := f.hasher.Hash(in.Password)
	if err != nil {
		f.log.Error("reset hash failed", zap.Error(err))
		return customErrors.ErrInvalidOrExpiredToken
	}

	req, err := f.resets.Consume(ctx, model.TokenDigest(in.Token), f.now().UTC())
	if err != nil {
		if !errors.Is(err, customErrors.ErrNotFound) {
			f.log.Error("reset consume failed", zap.Error(err))
		}
		return customErrors.ErrInvalidOrExpiredToken
	}
	log := f.log.With(logx.Email(req.Email))

	user, err := f.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		log.Warn("reset for vanished account", zap.Error(err))
		return customErrors.ErrInvalidOrExpiredToken
	}
	if err := f.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		log.Error("password update failed", zap.Error(err))
		return customErrors.ErrInvalidOrExpiredToken
	}
	if err := f.ledger.RevokeAllForUser(ctx, user.ID); err != nil {
		// the password already changed; outstanding sessions expire on their own
		log.Error("refresh tokens not revoked after reset", zap.Error(err))
	}
	log.Info("password reset")
	return nil
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
