package oauth

import (
	"context"
	"log/slog"
	"time"

	"jwtauth/config"
	domainerrors "jwtauth/internal/domain/errors"
	"jwtauth/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

type validateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

type googleIDTokenVerifier struct {
	clientID string
	timeout  time.Duration
	validate validateFunc
	logger   *slog.Logger
}

// IDTokenVerifierParams holds dependencies for GoogleIDTokenVerifier, injected by Fx.
type IDTokenVerifierParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

// NewGoogleIDTokenVerifier verifies Google Sign-In ID tokens against the
// configured Google client id.
func NewGoogleIDTokenVerifier(params IDTokenVerifierParams) service.IDTokenVerifier {
	timeout := params.Config.OAuth.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}

	return &googleIDTokenVerifier{
		clientID: params.Config.OAuth.Google.ClientID,
		timeout:  timeout,
		validate: idtoken.Validate,
		logger:   params.Logger,
	}
}

func (v *googleIDTokenVerifier) Verify(ctx context.Context, idToken string) (*service.NormalizedUserInfo, error) {
	if v.clientID == "" {
		return nil, domainerrors.ErrUnsupportedProvider.WrapMessage("google client id is not configured")
	}
	if idToken == "" {
		return nil, domainerrors.ErrTokenInvalid.WrapMessage("empty id token")
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	payload, err := v.validate(ctx, idToken, v.clientID)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, errors.Wrapf(domainerrors.ErrOAuthGatewayTimeout, "id token validation: %v", err)
		}
		v.logger.Warn("Google ID token rejected", slog.Any("error", err))

		return nil, errors.Wrapf(domainerrors.ErrTokenInvalid, "id token validation: %v", err)
	}

	if payload.Subject == "" {
		return nil, domainerrors.ErrTokenInvalid.WrapMessage("id token has no subject")
	}

	return &service.NormalizedUserInfo{
		ID:        payload.Subject,
		Email:     verifiedEmail(payload.Claims),
		Nickname:  stringClaim(payload.Claims, "name"),
		AvatarURL: stringClaim(payload.Claims, "picture"),
	}, nil
}

// verifiedEmail only releases the email when Google marks it verified.
func verifiedEmail(claims map[string]any) string {
	if verified, ok := claims["email_verified"].(bool); ok && !verified {
		return ""
	}

	return stringClaim(claims, "email")
}

func stringClaim(claims map[string]any, key string) string {
	value, _ := claims[key].(string)

	return value
}
