// Package handler contains the HTTP handlers for the API.
package handler

import (
	"net/http"
	"time"

	"jwtauth/config"
	"jwtauth/internal/delivery/api/response"
	deliverycontext "jwtauth/internal/delivery/context"
	"jwtauth/internal/domain/entity"
	domainerrors "jwtauth/internal/domain/errors"
	"jwtauth/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const tokenTypeBearer = "Bearer"

type signUpRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
	Nickname string `json:"nickname" validate:"omitempty,max=50"`
	Role     string `json:"role" validate:"omitempty,oneof=USER ADMIN"`
}

type signInRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	Username     string `json:"username" validate:"required"`
	RefreshToken string `json:"refreshToken"`
}

type oauthLoginRequest struct {
	Provider          string `json:"provider" validate:"required"`
	AuthorizationCode string `json:"authorizationCode" validate:"required"`
	State             string `json:"state"`
}

type idTokenLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

type tokenResponse struct {
	AccessToken string           `json:"accessToken"`
	TokenType   string           `json:"tokenType"`
	ExpiresIn   int64            `json:"expiresIn"`
	Account     *accountResponse `json:"account,omitempty"`
}

// AuthHandler serves the credential and token endpoints.
type AuthHandler struct {
	uc     usecase.AuthUsecase
	cookie config.CookieConfig
}

// NewAuthHandler is the constructor for AuthHandler, injected by Fx.
func NewAuthHandler(uc usecase.AuthUsecase, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		uc:     uc,
		cookie: cfg.Cookie,
	}
}

// SignUp registers a local account. Creating an ADMIN requires an ADMIN caller.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	role := entity.RoleUser
	if req.Role != "" {
		role = entity.Role(req.Role)
	}
	if role == entity.RoleAdmin {
		_, callerRole, ok := deliverycontext.GetPrincipal(c)
		if !ok || callerRole != entity.RoleAdmin {
			return errors.Wrap(domainerrors.ErrForbidden, "only administrators may create administrator accounts")
		}
	}

	account, err := h.uc.SignUp(c.Request().Context(), &usecase.SignUpInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Nickname: req.Nickname,
		Role:     role,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, newAccountResponse(account))
}

// SignIn authenticates with username and password.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	output, err := h.uc.SignIn(c.Request().Context(), &usecase.SignInInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return h.respondWithTokens(c, output.Tokens, output.Account)
}

// RefreshToken exchanges a refresh token for a new pair. The token is read
// from the body first and from the refresh cookie otherwise.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req refreshRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	refreshToken := h.refreshTokenFrom(c, req.RefreshToken)
	if refreshToken == "" {
		return errors.Wrap(domainerrors.ErrRefreshTokenNotFound, "no refresh token presented")
	}

	tokens, err := h.uc.Reissue(c.Request().Context(), &usecase.ReissueInput{
		Username:     req.Username,
		RefreshToken: refreshToken,
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrRefreshTokenReused) {
			h.clearRefreshCookie(c)
		}

		return errors.WithStack(err)
	}

	return h.respondWithTokens(c, tokens, nil)
}

// Logout retires the presented refresh token and clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	refreshToken := h.refreshTokenFrom(c, req.RefreshToken)
	if refreshToken != "" {
		err := h.uc.Logout(c.Request().Context(), &usecase.LogoutInput{
			Username:     req.Username,
			RefreshToken: refreshToken,
		})
		if err != nil {
			return errors.WithStack(err)
		}
	}

	h.clearRefreshCookie(c)

	return c.NoContent(http.StatusNoContent)
}

// BeginOAuth returns the provider consent URL, or redirects to it when
// called with ?redirect=true.
func (h *AuthHandler) BeginOAuth(c echo.Context) error {
	provider, ok := entity.ParseProviderType(c.Param("provider"))
	if !ok {
		return errors.Wrapf(domainerrors.ErrUnsupportedProvider, "provider %q", c.Param("provider"))
	}

	output, err := h.uc.BeginOAuth(c.Request().Context(), provider)
	if err != nil {
		return errors.WithStack(err)
	}

	if c.QueryParam("redirect") == "true" {
		return c.Redirect(http.StatusTemporaryRedirect, output.AuthorizationURL)
	}

	return response.Success(c, http.StatusOK, map[string]string{
		"authorizationUrl": output.AuthorizationURL,
		"state":            output.State,
	})
}

// OAuthLogin completes an authorization-code login.
func (h *AuthHandler) OAuthLogin(c echo.Context) error {
	var req oauthLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	provider, ok := entity.ParseProviderType(req.Provider)
	if !ok {
		return errors.Wrapf(domainerrors.ErrUnsupportedProvider, "provider %q", req.Provider)
	}

	output, err := h.uc.OAuthLogin(c.Request().Context(), &usecase.OAuthLoginInput{
		Provider:          provider,
		AuthorizationCode: req.AuthorizationCode,
		State:             req.State,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return h.respondWithTokens(c, output.Tokens, output.Account)
}

// GoogleIDTokenLogin signs in with a Google ID token.
func (h *AuthHandler) GoogleIDTokenLogin(c echo.Context) error {
	var req idTokenLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	output, err := h.uc.OAuthLoginWithIDToken(c.Request().Context(), &usecase.IDTokenLoginInput{
		Provider: entity.ProviderTypeGoogle,
		IDToken:  req.IDToken,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return h.respondWithTokens(c, output.Tokens, output.Account)
}

func (h *AuthHandler) respondWithTokens(c echo.Context, tokens *usecase.TokenPair, account *entity.Account) error {
	h.setRefreshCookie(c, tokens.RefreshToken, tokens.RefreshTokenExpiresAt)

	resp := tokenResponse{
		AccessToken: tokens.AccessToken,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(tokens.AccessTokenExpiresIn / time.Second),
	}
	if account != nil {
		resp.Account = newAccountResponse(account)
	}

	return response.Success(c, http.StatusOK, resp)
}

func (h *AuthHandler) refreshTokenFrom(c echo.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}

	cookie, err := c.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}

	return cookie.Value
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, value string, expiresAt time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		MaxAge:   h.cookie.MaxAge,
		Expires:  expiresAt,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		MaxAge:   -1,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return errors.Wrap(domainerrors.ErrValidationFailed.WithDetails("malformed request body"), "bind request")
	}
	if err := c.Validate(req); err != nil {
		return errors.WithStack(err)
	}

	return nil
}
