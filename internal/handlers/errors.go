// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/storefront/internal/i18n"
	"codeberg.org/oliverandrich/storefront/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// localizable is implemented by service errors that carry a message ID.
type localizable interface {
	MessageID() string
	TemplateData() map[string]any
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Message string `json:"message"`
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.Is(err, auth.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &he):
		return he.Code
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler is the echo HTTPErrorHandler. It writes {"message": ...} in the
// request's language and hides internal details behind a generic message.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	ctx := c.Request().Context()
	status := StatusCode(err)

	var message string
	var l localizable
	var he *echo.HTTPError
	switch {
	case errors.As(err, &l):
		message = i18n.TData(ctx, l.MessageID(), l.TemplateData())
	case status == http.StatusBadRequest:
		message = i18n.T(ctx, "error_bad_request")
	case status >= http.StatusInternalServerError:
		message = i18n.T(ctx, "error_internal")
	case errors.As(err, &he):
		message = http.StatusText(he.Code)
	default:
		message = http.StatusText(status)
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"error", err,
		)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, errorResponse{Message: message})
	}
	if writeErr != nil {
		slog.Error("failed to write error response", "error", writeErr)
	}
}
