package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/app/auth/password"
	customErrors "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/model"
	repo "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/repo"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/config"
	logx "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SecondFactor generates and checks TOTP secrets.
type SecondFactor interface {
	Enroll(account string) (model.Enrollment, error)
	Verify(secret, code string) bool
}

// Federation resolves a provider token to a local user.
type Federation interface {
	Exchange(ctx context.Context, provider, token string) (model.User, error)
}

type Service interface {
	Register(context.Context, dto.RegisterDTO) (model.User, error)
	Login(context.Context, dto.LoginDTO) (model.LoginResult, error)
	VerifySecondFactor(context.Context, dto.TwoFactorDTO) (model.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	FederatedLogin(context.Context, dto.FederatedLoginDTO) (model.TokenPair, error)
	CurrentUser(ctx context.Context, accessToken string) (model.User, error)
}

type authService struct {
	userRepo    repo.UserRepo
	ledger      repo.RefreshTokenRepo
	enrollments repo.EnrollmentRepo
	jwtUtil     jwt.JWTUtil
	hasher      password.Hasher
	otp         SecondFactor
	federation  Federation
	cfg         *config.Config
	v           *validator.Validate
	log         *zap.Logger
	now         func() time.Time
	dummyHash   string
}

type Option func(*authService)

func WithClock(now func() time.Time) Option {
	return func(a *authService) { a.now = now }
}

func New(
	ur repo.UserRepo,
	ledger repo.RefreshTokenRepo,
	enrollments repo.EnrollmentRepo,
	jm jwt.JWTUtil,
	hasher password.Hasher,
	otp SecondFactor,
	federation Federation,
	cfg *config.Config,
	v *validator.Validate,
	log *zap.Logger,
	opts ...Option,
) (Service, error) {
	// verified against for unknown emails
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, customErrors.WrapInternal(err, "dummy hash")
	}

	a := &authService{
		userRepo:    ur,
		ledger:      ledger,
		enrollments: enrollments,
		jwtUtil:     jm,
		hasher:      hasher,
		otp:         otp,
		federation:  federation,
		cfg:         cfg,
		v:           v,
		log:         log,
		now:         time.Now,
		dummyHash:   dummy,
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *authService) Register(ctx context.Context, in dto.RegisterDTO) (model.User, error) {
	if in.Password != in.PasswordConfirm {
		return model.User{}, customErrors.ErrPasswordMismatch
	}
	in.Email = normalizeEmail(in.Email)
	if err := a.v.Struct(in); err != nil {
		return model.User{}, customErrors.NewInvalidArgument(err.Error())
	}
	if len(in.Password) > password.MaxBytes {
		return model.User{}, customErrors.NewInvalidArgument("password is longer than 72 bytes")
	}
	if model.IsReservedEmail(in.Email) {
		return model.User{}, customErrors.NewInvalidArgument("email domain is reserved")
	}

	passwordHash, err := a.hasher.Hash(in.Password)
	if err != nil {
		return model.User{}, customErrors.WrapInternal(err, "Register")
	}

	now := a.now().UTC()
	user := model.User{
		ID:           uuid.New(),
		Email:        in.Email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err = a.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, customErrors.ErrAlreadyExists) {
			return model.User{}, customErrors.ErrAlreadyExists
		}
		return model.User{}, customErrors.WrapInternal(err, "Register")
	}

	a.log.Info("user registered", zap.String("user_id", user.ID.String()), logx.Email(user.Email))
	return user, nil
}

func (a *authService) Login(ctx context.Context, in dto.LoginDTO) (model.LoginResult, error) {
	if err := a.v.Struct(in); err != nil {
		return model.LoginResult{}, customErrors.ErrInvalidCredentials
	}

	user, err := a.userRepo.GetUserByEmail(ctx, normalizeEmail(in.Email))
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		a.hasher.Verify(in.Password, a.dummyHash)
		return model.LoginResult{}, customErrors.ErrInvalidCredentials
	case err != nil:
		return model.LoginResult{}, customErrors.WrapInternal(err, "Login")
	}

	if !a.hasher.Verify(in.Password, user.PasswordHash) {
		return model.LoginResult{}, customErrors.ErrInvalidCredentials
	}

	if user.TwoFactorEnrolled() {
		return model.LoginResult{UserID: user.ID}, nil
	}

	// every login before enrollment replaces the provisional secret
	enr, err := a.otp.Enroll(user.Email)
	if err != nil {
		return model.LoginResult{}, customErrors.WrapInternal(err, "Enroll")
	}
	if err := a.enrollments.SavePending(ctx, user.ID, enr.Secret, a.cfg.EnrollmentTTL); err != nil {
		return model.LoginResult{}, customErrors.WrapInternal(err, "SavePending")
	}

	return model.LoginResult{UserID: user.ID, Secret: enr.Secret, OTPAuthURL: enr.URL}, nil
}

func (a *authService) VerifySecondFactor(ctx context.Context, in dto.TwoFactorDTO) (model.TokenPair, error) {
	if err := a.v.Struct(in); err != nil {
		return model.TokenPair{}, customErrors.ErrInvalidCredentials
	}
	id, err := uuid.Parse(in.ID)
	if err != nil {
		return model.TokenPair{}, customErrors.ErrInvalidCredentials
	}

	user, err := a.userRepo.GetUserByID(ctx, id)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return model.TokenPair{}, customErrors.ErrInvalidCredentials
	case err != nil:
		return model.TokenPair{}, customErrors.WrapInternal(err, "GetUserByID")
	}

	secret, pending := user.TOTPSecret, false
	if secret == "" {
		secret, err = a.enrollments.GetPending(ctx, id)
		switch {
		case errors.Is(err, customErrors.ErrNotFound):
			return model.TokenPair{}, customErrors.ErrInvalidCredentials
		case err != nil:
			return model.TokenPair{}, customErrors.WrapInternal(err, "GetPending")
		}
		pending = true
	}

	if !a.otp.Verify(secret, in.Code) {
		return model.TokenPair{}, customErrors.ErrInvalidCredentials
	}

	if pending {
		if err := a.completeEnrollment(ctx, id, secret); err != nil {
			return model.TokenPair{}, err
		}
	}

	return a.issuePair(ctx, user.ID)
}

func (a *authService) completeEnrollment(ctx context.Context, id uuid.UUID, secret string) error {
	stored, err := a.userRepo.SetTOTPSecret(ctx, id, secret)
	if err != nil {
		return customErrors.WrapInternal(err, "SetTOTPSecret")
	}
	if !stored {
		// another request enrolled first; only its secret counts now
		current, err := a.userRepo.GetUserByID(ctx, id)
		if err != nil {
			return customErrors.WrapInternal(err, "GetUserByID")
		}
		if current.TOTPSecret != secret {
			return customErrors.ErrInvalidCredentials
		}
	}
	if err := a.enrollments.DeletePending(ctx, id); err != nil {
		a.log.Warn("pending enrollment not deleted", zap.String("user_id", id.String()), zap.Error(err))
	}
	a.log.Info("second factor enrolled", zap.String("user_id", id.String()))
	return nil
}

func (a *authService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	if refreshToken == "" {
		return model.TokenPair{}, customErrors.ErrUnauthorized
	}
	claims, err := a.jwtUtil.ValidateRefreshToken(refreshToken)
	if err != nil {
		return model.TokenPair{}, customErrors.ErrUnauthorized
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.TokenPair{}, customErrors.ErrUnauthorized
	}

	tokenHash := model.TokenDigest(refreshToken)
	if _, err := a.ledger.FindValid(ctx, userID, tokenHash, a.now()); err != nil {
		if !errors.Is(err, customErrors.ErrNotFound) {
			a.log.Error("refresh ledger lookup failed", zap.Error(err))
		}
		return model.TokenPair{}, customErrors.ErrUnauthorized
	}

	if !a.cfg.RotateRefreshTokens {
		at, atExp, _, err := a.jwtUtil.GenerateAccessToken(userID)
		if err != nil {
			return model.TokenPair{}, customErrors.WrapInternal(err, "GenerateAccessToken")
		}
		return model.TokenPair{
			AccessToken: at,
			AccessTTL:   atExp.Sub(a.now()),
			UserId:      userID,
		}, nil
	}

	// rotation: the presented token is spent, at most once
	spent, err := a.ledger.Revoke(ctx, tokenHash)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "Revoke")
	}
	if !spent {
		return model.TokenPair{}, customErrors.ErrUnauthorized
	}
	return a.issuePair(ctx, userID)
}

func (a *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if _, err := a.ledger.Revoke(ctx, model.TokenDigest(refreshToken)); err != nil {
		a.log.Error("logout revoke failed", zap.Error(err))
	}
	return nil
}

func (a *authService) FederatedLogin(ctx context.Context, in dto.FederatedLoginDTO) (model.TokenPair, error) {
	if err := a.v.Struct(in); err != nil {
		return model.TokenPair{}, customErrors.ErrUnauthorized
	}

	user, err := a.federation.Exchange(ctx, in.Provider, in.ProviderToken)
	if err != nil {
		if customErrors.IsInvalidFederatedAssertion(err) {
			a.log.Info("federated assertion rejected", zap.String("provider", in.Provider), zap.Error(err))
			return model.TokenPair{}, customErrors.ErrUnauthorized
		}
		return model.TokenPair{}, customErrors.WrapInternal(err, "Exchange")
	}

	return a.issuePair(ctx, user.ID)
}

func (a *authService) CurrentUser(ctx context.Context, accessToken string) (model.User, error) {
	claims, err := a.jwtUtil.ValidateAccessToken(accessToken)
	if err != nil {
		return model.User{}, customErrors.ErrUnauthorized
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.User{}, customErrors.ErrUnauthorized
	}

	user, err := a.userRepo.GetUserByID(ctx, id)
	if err != nil {
		if !errors.Is(err, customErrors.ErrNotFound) {
			a.log.Error("current user lookup failed", zap.Error(err))
		}
		return model.User{}, customErrors.ErrUnauthorized
	}
	user.PasswordHash, user.TOTPSecret = "", ""
	return user, nil
}

func (a *authService) issuePair(ctx context.Context, userID uuid.UUID) (model.TokenPair, error) {
	at, atExp, _, err := a.jwtUtil.GenerateAccessToken(userID)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "GenerateAccessToken")
	}
	rt, rtExp, jti, err := a.jwtUtil.GenerateRefreshToken(userID)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "GenerateRefreshToken")
	}

	now := a.now()
	entry := model.RefreshToken{
		UserID:    userID,
		TokenHash: model.TokenDigest(rt),
		ExpiredAt: now.Add(a.cfg.RefreshLedgerTTL),
	}
	if err = a.ledger.Record(ctx, entry); err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "Record")
	}

	refreshTTL := rtExp.Sub(now)
	if ledgerTTL := entry.ExpiredAt.Sub(now); ledgerTTL < refreshTTL {
		refreshTTL = ledgerTTL
	}

	return model.TokenPair{
		AccessToken:     at,
		RefreshToken:    rt,
		AccessTTL:       atExp.Sub(now),
		RefreshTTL:      refreshTTL,
		UserId:          userID,
		RefreshTokenJTI: jti,
	}, nil
}
