// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/oliverandrich/storefront/internal/handlers"
	"codeberg.org/oliverandrich/storefront/internal/middleware"
	"github.com/labstack/echo/v4"
)

func setupRoutes(e *echo.Echo, h *handlers.Handlers, sessions middleware.SessionVerifier) {
	e.GET("/health", h.Health)

	api := e.Group("/api/auth")

	// Public
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/verify-otp", h.VerifyOTP)
	api.POST("/recovery-login", h.RecoveryLogin)

	// Session required
	private := api.Group("", middleware.RequireSession(sessions))
	private.POST("/generate-2fa", h.Generate2FA)
	private.POST("/confirm-2fa", h.Confirm2FA)
	private.POST("/disable-2fa", h.Disable2FA)
	private.POST("/generate-recovery-codes", h.RegenerateRecoveryCodes)
	private.PUT("/update-address", h.UpdateAddress)
	private.GET("/profile", h.Profile)
	private.GET("/validate-token", h.ValidateToken)
}
