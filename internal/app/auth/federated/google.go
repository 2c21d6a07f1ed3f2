package federated

import (
	"context"
	"fmt"

	customErrors "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/errors"
	"google.golang.org/api/idtoken"
)

type validateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// GoogleProvider checks Google ID tokens against Google's public keys,
// restricted to this application's client id.
type GoogleProvider struct {
	clientID string
	validate validateFunc
}

func NewGoogleProvider(clientID string) *GoogleProvider {
	return &GoogleProvider{clientID: clientID, validate: idtoken.Validate}
}

func (g *GoogleProvider) Name() string { return "google" }

func (g *GoogleProvider) Verify(ctx context.Context, token string) (Identity, error) {
	if g.clientID == "" {
		return Identity{}, fmt.Errorf("%w: google login is not configured", customErrors.ErrInvalidFederatedAssertion)
	}

	payload, err := g.validate(ctx, token, g.clientID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", customErrors.ErrInvalidFederatedAssertion, err)
	}
	if payload == nil {
		return Identity{}, fmt.Errorf("%w: empty payload", customErrors.ErrInvalidFederatedAssertion)
	}

	email := claim(payload.Claims, "email")
	if email == "" {
		return Identity{}, fmt.Errorf("%w: no email in payload", customErrors.ErrInvalidFederatedAssertion)
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return Identity{}, fmt.Errorf("%w: email not verified", customErrors.ErrInvalidFederatedAssertion)
	}

	return Identity{
		Email:      email,
		GivenName:  claim(payload.Claims, "given_name"),
		FamilyName: claim(payload.Claims, "family_name"),
	}, nil
}

func claim(claims map[string]interface{}, name string) string {
	s, _ := claims[name].(string)
	return s
}
