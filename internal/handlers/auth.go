// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	authctx "codeberg.org/oliverandrich/storefront/internal/auth"
	"codeberg.org/oliverandrich/storefront/internal/i18n"
	"codeberg.org/oliverandrich/storefront/internal/middleware"
	"codeberg.org/oliverandrich/storefront/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address"`
}

// LoginRequest is the request body for login. OTP is only needed for
// accounts with two-factor authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

type otpRequest struct {
	OTP string `json:"otp"`
}

type confirm2FARequest struct {
	OTP        string `json:"otp"`
	TempSecret string `json:"tempSecret"`
}

type recoveryLoginRequest struct {
	Email        string `json:"email"`
	RecoveryCode string `json:"recoveryCode"`
}

type updateAddressRequest struct {
	Address string `json:"address"`
}

type sessionResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Address  string `json:"address"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func newSessionResponse(s *auth.Session) sessionResponse {
	return sessionResponse{Token: s.Token, Username: s.Username, Email: s.Email, Address: s.Address}
}

// Register creates an account and signs it in.
func (h *Handlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	session, err := h.auth.Register(c.Request().Context(), auth.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Address:  req.Address,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"message":  i18n.T(c.Request().Context(), "msg_registered"),
		"token":    session.Token,
		"username": session.Username,
	})
}

// Login answers 200 with a session, or 202 with a step-up token when a
// one-time code is still required.
func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	result, err := h.auth.Login(c.Request().Context(), req.Email, req.Password, req.OTP)
	if err != nil {
		return err
	}

	if result.OTPRequired() {
		return c.JSON(http.StatusAccepted, map[string]string{
			"status":    "otp-required",
			"message":   i18n.T(c.Request().Context(), "msg_otp_required"),
			"tempToken": result.StepUpToken,
		})
	}
	return c.JSON(http.StatusOK, newSessionResponse(result.Session))
}

// VerifyOTP exchanges a step-up bearer token and a one-time code for a session.
func (h *Handlers) VerifyOTP(c echo.Context) error {
	stepUp := middleware.BearerToken(c.Request())
	if stepUp == "" {
		return auth.ErrTokenMissing
	}

	var req otpRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	session, err := h.auth.VerifyOTP(c.Request().Context(), stepUp, req.OTP)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSessionResponse(session))
}

// Generate2FA starts enrollment and returns the QR code and secret.
func (h *Handlers) Generate2FA(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	enrollment, err := h.auth.Generate2FA(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"qrImage":    enrollment.QRImage,
		"tempSecret": enrollment.TempSecret,
	})
}

// Confirm2FA enables two-factor authentication and returns the backup codes.
func (h *Handlers) Confirm2FA(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req confirm2FARequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	codes, err := h.auth.Confirm2FA(c.Request().Context(), userID, req.OTP, req.TempSecret)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":     i18n.T(c.Request().Context(), "msg_two_factor_enabled"),
		"backupCodes": codes,
	})
}

// Disable2FA turns two-factor authentication off.
func (h *Handlers) Disable2FA(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	if err := h.auth.Disable2FA(c.Request().Context(), userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{
		Status:  "ok",
		Message: i18n.T(c.Request().Context(), "msg_two_factor_disabled"),
	})
}

// RegenerateRecoveryCodes replaces all backup codes with a new batch.
func (h *Handlers) RegenerateRecoveryCodes(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	codes, err := h.auth.RegenerateBackupCodes(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string][]string{"codes": codes})
}

// RecoveryLogin signs in with a backup code.
func (h *Handlers) RecoveryLogin(c echo.Context) error {
	var req recoveryLoginRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	result, err := h.auth.RecoveryLogin(c.Request().Context(), req.Email, req.RecoveryCode)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"token":          result.Token,
		"remainingCodes": result.RemainingCodes,
	})
}

// UpdateAddress replaces the shipping address.
func (h *Handlers) UpdateAddress(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req updateAddressRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	if err := h.auth.UpdateAddress(c.Request().Context(), userID, req.Address); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{
		Status:  "ok",
		Message: i18n.T(c.Request().Context(), "msg_address_updated"),
	})
}

// Profile returns the account of the signed-in user.
func (h *Handlers) Profile(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	profile, err := h.auth.Profile(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"username":         profile.Username,
		"email":            profile.Email,
		"address":          profile.Address,
		"twoFactorEnabled": profile.TwoFactorEnabled,
	})
}

// ValidateToken confirms that the bearer token is a valid session.
func (h *Handlers) ValidateToken(c echo.Context) error {
	if _, err := currentUserID(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{
		Status:  "ok",
		Message: i18n.T(c.Request().Context(), "msg_token_valid"),
	})
}

// currentUserID returns the user set by middleware.RequireSession.
func currentUserID(c echo.Context) (int64, error) {
	id, ok := authctx.UserID(c.Request().Context())
	if !ok {
		return 0, auth.ErrTokenMissing
	}
	return id, nil
}
