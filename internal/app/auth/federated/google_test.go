package federated

import (
	"context"
	"errors"
	"testing"

	customErrors "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/errors"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

func fakeGoogle(payload *idtoken.Payload, err error) *GoogleProvider {
	return &GoogleProvider{
		clientID: "client-id",
		validate: func(_ context.Context, _, audience string) (*idtoken.Payload, error) {
			if audience != "client-id" {
				return nil, errors.New("audience mismatch")
			}
			return payload, err
		},
	}
}

func TestGoogleProvider_Verify(t *testing.T) {
	p := fakeGoogle(&idtoken.Payload{Claims: map[string]interface{}{
		"email":          "user@gmail.com",
		"email_verified": true,
		"given_name":     "Ann",
		"family_name":    "Lee",
	}}, nil)

	id, err := p.Verify(context.Background(), "id-token")
	require.NoError(t, err)
	require.Equal(t, Identity{Email: "user@gmail.com", GivenName: "Ann", FamilyName: "Lee"}, id)
}

func TestGoogleProvider_Rejects(t *testing.T) {
	cases := map[string]*GoogleProvider{
		"validation error": fakeGoogle(nil, errors.New("token expired")),
		"nil payload":      fakeGoogle(nil, nil),
		"no email":         fakeGoogle(&idtoken.Payload{Claims: map[string]interface{}{"given_name": "Ann"}}, nil),
		"unverified email": fakeGoogle(&idtoken.Payload{Claims: map[string]interface{}{
			"email": "user@gmail.com", "email_verified": false,
		}}, nil),
		"not configured": NewGoogleProvider(""),
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.Verify(context.Background(), "id-token")
			require.ErrorIs(t, err, customErrors.ErrInvalidFederatedAssertion)
		})
	}
}
