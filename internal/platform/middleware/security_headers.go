package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	apiCSP  = "default-src 'none'; frame-ancestors 'none'"
	hstsMax = "max-age=31536000"
)

// SecurityHeaders sets the response headers every MedVault response carries.
// Responses hold patient data and are never cached. JSON responses may not
// be framed; PDF documents (paths ending in /pdf) may be framed by
// uiOrigins so the web client can preview them. HSTS is only sent when the
// request arrived over HTTPS, directly or through a proxy.
func SecurityHeaders(uiOrigins []string) echo.MiddlewareFunc {
	pdfCSP := "default-src 'none'; frame-ancestors 'self'"
	if len(uiOrigins) > 0 {
		pdfCSP += " " + strings.Join(uiOrigins, " ")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")

			if strings.HasSuffix(c.Request().URL.Path, "/pdf") {
				h.Set("Content-Security-Policy", pdfCSP)
			} else {
				h.Set("Content-Security-Policy", apiCSP)
				h.Set("X-Frame-Options", "DENY")
			}

			if c.Scheme() == "https" {
				h.Set("Strict-Transport-Security", hstsMax)
			}
			return next(c)
		}
	}
}
