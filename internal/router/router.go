package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/examdesk/examdesk-api/internal/config"
	"github.com/examdesk/examdesk-api/internal/handler"
	"github.com/examdesk/examdesk-api/internal/middleware"
	"github.com/examdesk/examdesk-api/internal/models"
	"github.com/examdesk/examdesk-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler           *handler.AuthHandler
	SettingsHandler       *handler.SettingsHandler
	TenantHandler         *handler.TenantHandler
	UserHandler           *handler.UserHandler
	AdminDashboardHandler *handler.AdminDashboardHandler
	BackupHandler         *handler.BackupHandler
	ExamHandler           *handler.ExamHandler
	QuestionHandler       *handler.QuestionHandler
	AttemptHandler        *handler.AttemptHandler
	JWTMiddleware         fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Uploaded question images are served statically when stored locally.
	if cfg.StorageBackend == config.StorageLocal {
		app.Static("/static/uploads", cfg.UploadFolder)
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		auth := api.Group("/auth", middleware.RateLimit("auth", 10, time.Minute))
		deps.AuthHandler.Register(auth)
	}

	if deps.SettingsHandler != nil {
		settings := api.Group("/settings", jwtMiddleware)
		deps.SettingsHandler.Register(settings)
	}

	admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
	if deps.TenantHandler != nil {
		deps.TenantHandler.Register(admin.Group("/tenants"))
	}
	if deps.UserHandler != nil {
		deps.UserHandler.Register(admin.Group("/users"))
	}
	if deps.AdminDashboardHandler != nil {
		deps.AdminDashboardHandler.Register(admin)
	}
	if deps.BackupHandler != nil {
		deps.BackupHandler.Register(admin)
	}

	if deps.ExamHandler != nil || deps.QuestionHandler != nil {
		instructor := api.Group("/instructor", jwtMiddleware, middleware.RequireRole(models.RoleInstructor))
		if deps.ExamHandler != nil {
			deps.ExamHandler.Register(instructor)
		}
		if deps.QuestionHandler != nil {
			deps.QuestionHandler.Register(instructor)
		}
	}

	if deps.AttemptHandler != nil {
		student := api.Group("/student", jwtMiddleware, middleware.RequireRole(models.RoleStudent))
		deps.AttemptHandler.Register(student)
	}
}
