package totp

import (
	"time"

	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/model"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	period     = 30
	secretSize = 20
)

type Engine struct {
	issuer string
	skew   uint
	now    func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an engine tolerating skew time steps on either side; skew is
// raised to 1 when smaller.
func New(issuer string, skew uint, opts ...Option) *Engine {
	if skew < 1 {
		skew = 1
	}
	e := &Engine{issuer: issuer, skew: skew, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Enroll(account string) (model.Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: account,
		Period:      period,
		SecretSize:  secretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return model.Enrollment{}, err
	}
	return model.Enrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

func (e *Engine) Verify(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, e.now().UTC(), e.opts())
	return err == nil && ok
}

// Code returns the code for secret at t. Used by tests and tooling.
func (e *Engine) Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), e.opts())
}

func (e *Engine) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    period,
		Skew:      e.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}
