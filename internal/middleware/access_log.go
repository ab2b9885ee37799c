package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examdesk/examdesk-api/internal/models"
	"github.com/examdesk/examdesk-api/internal/repository"
)

const accessLogFieldLimit = 400

// AccessLog writes one audit row per API request, best effort. Static
// assets and operational endpoints are skipped.
func AccessLog(audit repository.AuditRepository, logger zerolog.Logger) fiber.Handler {
	auditLogger := logger.With().Str("component", "access_log").Logger()

	return func(c *fiber.Ctx) error {
		err := c.Next()

		path := c.Path()
		if strings.HasPrefix(path, "/static/") || path == "/metrics" || strings.HasSuffix(path, "/health") {
			return err
		}

		entry := models.AccessLog{
			IP:        clientIP(c),
			Path:      truncate(path, accessLogFieldLimit),
			Method:    c.Method(),
			UserAgent: truncate(c.Get("User-Agent"), accessLogFieldLimit),
		}
		if userID, ok := c.Locals("user_id").(uint); ok {
			entry.UserID = &userID
		}
		if tenantID, ok := c.Locals("tenant_id").(uint); ok {
			entry.TenantID = &tenantID
		}

		if dbErr := audit.CreateAccessLog(c.UserContext(), &entry); dbErr != nil {
			auditLogger.Warn().Err(dbErr).Msg("failed to record access log")
		}
		return err
	}
}

// clientIP prefers the first X-Forwarded-For hop when the API sits behind a
// proxy.
func clientIP(c *fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx > 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	return c.IP()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
