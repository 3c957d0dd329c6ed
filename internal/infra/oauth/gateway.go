// Package oauth talks to the external identity providers (Google, Kakao, Naver)
// and hides their payload shapes behind service.NormalizedUserInfo.
package oauth

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"jwtauth/config"
	"jwtauth/internal/domain/entity"
	domainerrors "jwtauth/internal/domain/errors"
	"jwtauth/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"golang.org/x/oauth2"
)

const (
	defaultGatewayTimeout = 10 * time.Second
	maxUserInfoBytes      = 1 << 20
)

// providerClient is the registration of one provider: its OAuth2 endpoints,
// user-info location and the normalizer for its payload.
type providerClient struct {
	provider    entity.ProviderType
	oauth       *oauth2.Config
	userInfoURL string
	decodeCode  bool
	normalize   func(body []byte) (*service.NormalizedUserInfo, error)
}

type gateway struct {
	clients    map[entity.ProviderType]*providerClient
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// GatewayParams holds dependencies for the provider gateway, injected by Fx.
type GatewayParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

// NewGateway builds the gateway for every provider that has a client id configured.
func NewGateway(params GatewayParams) service.OAuthProviderGateway {
	return newGateway(params.Config.OAuth, &http.Client{}, params.Logger)
}

func newGateway(cfg config.OAuthConfig, httpClient *http.Client, logger *slog.Logger) *gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}

	g := &gateway{
		clients:    make(map[entity.ProviderType]*providerClient),
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
	}

	g.register(entity.ProviderTypeGoogle, cfg.Google, googleDefaults, true, normalizeGoogle)
	g.register(entity.ProviderTypeKakao, cfg.Kakao, kakaoDefaults, false, normalizeKakao)
	g.register(entity.ProviderTypeNaver, cfg.Naver, naverDefaults, false, normalizeNaver)

	return g
}

func (g *gateway) register(
	provider entity.ProviderType,
	cfg config.OAuthProviderConfig,
	defaults providerEndpoints,
	decodeCode bool,
	normalize func([]byte) (*service.NormalizedUserInfo, error),
) {
	if cfg.ClientID == "" {
		return
	}

	endpoints := defaults.override(cfg)

	g.clients[provider] = &providerClient{
		provider: provider,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   endpoints.authURL,
				TokenURL:  endpoints.tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: endpoints.userInfoURL,
		decodeCode:  decodeCode,
		normalize:   normalize,
	}
}

func (g *gateway) client(provider entity.ProviderType) (*providerClient, error) {
	client, ok := g.clients[provider]
	if !ok {
		return nil, domainerrors.ErrUnsupportedProvider.WrapMessage("provider not configured: " + provider.String())
	}

	return client, nil
}

// AuthorizationURL builds the consent-screen URL carrying the one-time state.
func (g *gateway) AuthorizationURL(provider entity.ProviderType, state string) (string, error) {
	client, err := g.client(provider)
	if err != nil {
		return "", err
	}

	return client.oauth.AuthCodeURL(state), nil
}

// ExchangeCode trades an authorization code for a provider access token.
func (g *gateway) ExchangeCode(ctx context.Context, provider entity.ProviderType, code string) (string, error) {
	client, err := g.client(provider)
	if err != nil {
		return "", err
	}

	if client.decodeCode {
		// Google codes often arrive percent-encoded from the redirect.
		if decoded, decodeErr := url.QueryUnescape(code); decodeErr == nil {
			code = decoded
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)

	token, err := client.oauth.Exchange(ctx, code)
	if err != nil {
		g.logger.Warn("OAuth code exchange failed", slog.String("provider", provider.String()), slog.Any("error", err))

		return "", classifyGatewayError(ctx, err, "code exchange")
	}
	if token.AccessToken == "" {
		return "", domainerrors.ErrOAuthGatewayError.WrapMessage("provider returned an empty access token")
	}

	return token.AccessToken, nil
}

// FetchUserInfo loads the provider profile and normalizes it.
func (g *gateway) FetchUserInfo(ctx context.Context, provider entity.ProviderType, accessToken string) (*service.NormalizedUserInfo, error) {
	client, err := g.client(provider)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, client.userInfoURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build user info request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("OAuth user info request failed", slog.String("provider", provider.String()), slog.Any("error", err))

		return nil, classifyGatewayError(ctx, err, "user info request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, classifyGatewayError(ctx, err, "user info read")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		g.logger.Warn("OAuth user info rejected",
			slog.String("provider", provider.String()),
			slog.Int("status", resp.StatusCode),
		)

		return nil, errors.Wrapf(domainerrors.ErrOAuthGatewayError, "user info returned status %d", resp.StatusCode)
	}

	info, err := client.normalize(body)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrOAuthGatewayError, err.Error())
	}

	return info, nil
}

// classifyGatewayError maps transport failures onto the gateway error taxonomy.
func classifyGatewayError(ctx context.Context, err error, op string) error {
	if isTimeout(ctx, err) {
		return errors.Wrapf(domainerrors.ErrOAuthGatewayTimeout, "%s: %v", op, err)
	}

	return errors.Wrapf(domainerrors.ErrOAuthGatewayError, "%s: %v", op, err)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
