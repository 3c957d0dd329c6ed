package handler

import (
	"net/http"
	"time"

	"jwtauth/internal/delivery/api/response"
	deliverycontext "jwtauth/internal/delivery/context"
	"jwtauth/internal/domain/entity"
	domainerrors "jwtauth/internal/domain/errors"
	"jwtauth/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type accountResponse struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           *string   `json:"email,omitempty"`
	Nickname        string    `json:"nickname"`
	ProfileImageURL *string   `json:"profileImageUrl,omitempty"`
	Role            string    `json:"role"`
	CreatedAt       time.Time `json:"createdAt"`
}

func newAccountResponse(account *entity.Account) *accountResponse {
	return &accountResponse{
		ID:              account.ID.String(),
		Username:        account.Username,
		Email:           account.Email,
		Nickname:        account.Nickname,
		ProfileImageURL: account.ProfileImageURL,
		Role:            account.Role.String(),
		CreatedAt:       account.CreatedAt,
	}
}

type updateProfileRequest struct {
	Nickname        string  `json:"nickname" validate:"omitempty,max=50"`
	ProfileImageURL *string `json:"profileImageUrl" validate:"omitempty,url,max=2048"`
}

// AccountHandler serves profile reads and updates.
type AccountHandler struct {
	uc usecase.AccountUsecase
}

// NewAccountHandler is the constructor for AccountHandler, injected by Fx.
func NewAccountHandler(uc usecase.AccountUsecase) *AccountHandler {
	return &AccountHandler{uc: uc}
}

// GetMe returns the caller's account.
func (h *AccountHandler) GetMe(c echo.Context) error {
	username, _, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return errors.Wrap(domainerrors.ErrUnauthorized, "caller is not authenticated")
	}

	return h.respondWithAccount(c, username)
}

// UpdateMe replaces the caller's display fields.
func (h *AccountHandler) UpdateMe(c echo.Context) error {
	username, _, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return errors.Wrap(domainerrors.ErrUnauthorized, "caller is not authenticated")
	}

	var req updateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	account, err := h.uc.UpdateProfile(c.Request().Context(), username, &usecase.UpdateProfileInput{
		Nickname:        req.Nickname,
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, newAccountResponse(account))
}

// GetAccount returns any account by username. Admin only.
func (h *AccountHandler) GetAccount(c echo.Context) error {
	return h.respondWithAccount(c, c.Param("username"))
}

func (h *AccountHandler) respondWithAccount(c echo.Context, username string) error {
	account, err := h.uc.GetAccount(c.Request().Context(), username)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, newAccountResponse(account))
}
