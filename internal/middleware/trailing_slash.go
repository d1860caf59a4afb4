// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// StripTrailingSlash rewrites "/api/auth/login/" to "/api/auth/login" before
// routing. The path is rewritten in place because JSON clients do not repeat
// a POST body after a redirect. Register it with echo's Pre.
func StripTrailingSlash() echo.MiddlewareFunc {
	return echomw.RemoveTrailingSlash()
}
