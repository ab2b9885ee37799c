package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/examdesk/examdesk-api/internal/config"
	"github.com/examdesk/examdesk-api/internal/database"
	"github.com/examdesk/examdesk-api/internal/handler"
	"github.com/examdesk/examdesk-api/internal/middleware"
	"github.com/examdesk/examdesk-api/internal/models"
	"github.com/examdesk/examdesk-api/internal/repository"
	"github.com/examdesk/examdesk-api/internal/router"
	"github.com/examdesk/examdesk-api/internal/service"
	cloud "github.com/examdesk/examdesk-api/pkg/cloudinary"
	"github.com/examdesk/examdesk-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var uploader service.FileUploader
	switch cfg.StorageBackend {
	case config.StorageCloudinary:
		uploader, err = cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	default:
		uploader, err = storage.NewLocal(cfg.UploadFolder, "/static/uploads", logger)
	}
	if err != nil {
		log.Fatalf("failed to create uploader: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	tenantRepo := repository.NewTenantRepository(db)
	userRepo := repository.NewUserRepository(db)
	examRepo := repository.NewExamRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authService := service.NewAuthService(userRepo, validate, cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, logger)
	tenantService := service.NewTenantService(tenantRepo, validate, logger)
	userService := service.NewUserService(userRepo, tenantRepo, validate, logger)
	examService := service.NewExamService(examRepo, attemptRepo, auditRepo, validate, logger)
	questionService := service.NewQuestionService(questionRepo, examRepo, validate, uploader, logger)
	spreadsheetService := service.NewSpreadsheetService(questionRepo, examRepo, logger)
	attemptService := service.NewAttemptService(attemptRepo, examRepo, questionRepo, progressRepo, userRepo, logger)
	dashboardService := service.NewAdminDashboardService(tenantRepo, userRepo, examRepo, attemptRepo, auditRepo, redisClient, cfg.DashboardCacheTTL, logger)
	seedService := service.NewSeedService(tenantRepo, userRepo, cfg.SeedEnabled, cfg.SeedToken, logger)

	var dbPath string
	if database.IsSQLite(cfg.DatabaseURL) {
		dbPath = database.SQLitePath(cfg.DatabaseURL)
	}
	backupService := service.NewBackupService(db, dbPath, cfg.UploadFolder, cfg.BackupFolder, seedService.EnsureDefaults, logger)

	if cfg.SeedEnabled {
		if err := seedService.EnsureDefaults(context.Background()); err != nil {
			log.Fatalf("failed to seed defaults: %v", err)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, Audit: auditRepo})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:           handler.NewAuthHandler(authService, logger),
		SettingsHandler:       handler.NewSettingsHandler(authService, logger),
		TenantHandler:         handler.NewTenantHandler(tenantService, logger),
		UserHandler:           handler.NewUserHandler(userService, logger),
		AdminDashboardHandler: handler.NewAdminDashboardHandler(dashboardService, seedService, logger),
		BackupHandler:         handler.NewBackupHandler(backupService, logger),
		ExamHandler:           handler.NewExamHandler(examService, spreadsheetService, logger),
		QuestionHandler:       handler.NewQuestionHandler(questionService, logger),
		AttemptHandler:        handler.NewAttemptHandler(attemptService, logger),
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
