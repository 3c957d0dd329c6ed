package oauth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	domainerrors "jwtauth/internal/domain/errors"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

func newTestVerifier(validate validateFunc) *googleIDTokenVerifier {
	return &googleIDTokenVerifier{
		clientID: "google-client",
		timeout:  time.Second,
		validate: validate,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestGoogleIDTokenVerifier_Verify(t *testing.T) {
	var gotAudience string
	verifier := newTestVerifier(func(_ context.Context, _, audience string) (*idtoken.Payload, error) {
		gotAudience = audience

		return &idtoken.Payload{
			Subject: "google-sub",
			Claims: map[string]any{
				"email":          "g@example.com",
				"email_verified": true,
				"name":           "Gina",
				"picture":        "https://img/g.png",
			},
		}, nil
	})

	info, err := verifier.Verify(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Equal(t, "google-client", gotAudience)
	assert.Equal(t, "google-sub", info.ID)
	assert.Equal(t, "g@example.com", info.Email)
	assert.Equal(t, "Gina", info.Nickname)
	assert.Equal(t, "https://img/g.png", info.AvatarURL)
}

func TestGoogleIDTokenVerifier_UnverifiedEmailDropped(t *testing.T) {
	verifier := newTestVerifier(func(context.Context, string, string) (*idtoken.Payload, error) {
		return &idtoken.Payload{
			Subject: "google-sub",
			Claims:  map[string]any{"email": "g@example.com", "email_verified": false},
		}, nil
	})

	info, err := verifier.Verify(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Empty(t, info.Email)
}

func TestGoogleIDTokenVerifier_Rejected(t *testing.T) {
	verifier := newTestVerifier(func(context.Context, string, string) (*idtoken.Payload, error) {
		return nil, errors.New("idtoken: audience provided does not match aud claim in the JWT")
	})

	_, err := verifier.Verify(context.Background(), "id-token")
	assert.True(t, errors.Is(err, domainerrors.ErrTokenInvalid))

	_, err = verifier.Verify(context.Background(), "")
	assert.True(t, errors.Is(err, domainerrors.ErrTokenInvalid))
}

func TestGoogleIDTokenVerifier_Timeout(t *testing.T) {
	verifier := newTestVerifier(func(ctx context.Context, _, _ string) (*idtoken.Payload, error) {
		<-ctx.Done()

		return nil, ctx.Err()
	})
	verifier.timeout = 10 * time.Millisecond

	_, err := verifier.Verify(context.Background(), "id-token")
	assert.True(t, errors.Is(err, domainerrors.ErrOAuthGatewayTimeout))
}

func TestGoogleIDTokenVerifier_NotConfigured(t *testing.T) {
	verifier := newTestVerifier(nil)
	verifier.clientID = ""

	_, err := verifier.Verify(context.Background(), "id-token")
	assert.True(t, errors.Is(err, domainerrors.ErrUnsupportedProvider))
}
