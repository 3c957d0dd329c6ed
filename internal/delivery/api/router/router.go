// Package router contains routing and server setup for the HTTP API.
package router

import (
	"jwtauth/internal/delivery/api/middleware"
	"jwtauth/internal/delivery/api/router/handler"
	"jwtauth/internal/domain/entity"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	AccountHandler *handler.AccountHandler
	AuthMiddleware *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	accountHandler *handler.AccountHandler
	authMiddleware *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		accountHandler: params.AccountHandler,
		authMiddleware: params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	authGroup := e.Group("/auth")
	{
		// Anonymous callers may sign up; an admin token unlocks the ADMIN role.
		authGroup.POST("/signUp", r.authHandler.SignUp, r.authMiddleware.Identify)
		authGroup.POST("/signIn", r.authHandler.SignIn)
		authGroup.POST("/refreshToken", r.authHandler.RefreshToken)
		authGroup.POST("/logout", r.authHandler.Logout)

		authGroup.GET("/oauth/:provider/authorize", r.authHandler.BeginOAuth)
		authGroup.POST("/login/oauth", r.authHandler.OAuthLogin)
		authGroup.POST("/login/oauth/google/id-token", r.authHandler.GoogleIDTokenLogin)
	}

	accountGroup := e.Group("/account")
	accountGroup.Use(r.authMiddleware.Authenticate)
	{
		accountGroup.GET("/me", r.accountHandler.GetMe)
		accountGroup.PATCH("/me", r.accountHandler.UpdateMe)
	}

	adminGroup := e.Group("/admin")
	adminGroup.Use(r.authMiddleware.Authenticate)                  // First, check if logged in
	adminGroup.Use(r.authMiddleware.RequireRole(entity.RoleAdmin)) // Then, check for the role
	{
		adminGroup.GET("/accounts/:username", r.accountHandler.GetAccount)
	}
}
