package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/examdesk/examdesk-api/internal/config"
	"github.com/examdesk/examdesk-api/internal/handler"
	"github.com/examdesk/examdesk-api/internal/models"
	"github.com/examdesk/examdesk-api/internal/repository"
	"github.com/examdesk/examdesk-api/internal/router"
	"github.com/examdesk/examdesk-api/internal/service"
)

// testEnv wires the full HTTP stack against a throwaway sqlite database.
// Authentication is stubbed: identity headers are copied into the request
// locals the way the JWT middleware would.
type testEnv struct {
	app *fiber.App
	db  *gorm.DB
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func testIdentity(c *fiber.Ctx) error {
	if raw := c.Get("X-Test-User"); raw != "" {
		var id uint
		if _, err := fmt.Sscanf(raw, "%d", &id); err == nil {
			c.Locals("user_id", id)
		}
	}
	if role := c.Get("X-Test-Role"); role != "" {
		c.Locals("user_role", role)
	}
	if raw := c.Get("X-Test-Tenant"); raw != "" {
		var id uint
		if _, err := fmt.Sscanf(raw, "%d", &id); err == nil {
			c.Locals("tenant_id", id)
		}
	}
	if tz := c.Get("X-Test-TZ"); tz != "" {
		c.Locals("user_tz", tz)
	}
	return c.Next()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()

	db, err := gorm.Open(sqlite.Open(filepath.Join(root, "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	log := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	tenants := repository.NewTenantRepository(db)
	users := repository.NewUserRepository(db)
	exams := repository.NewExamRepository(db)
	questions := repository.NewQuestionRepository(db)
	attempts := repository.NewAttemptRepository(db)
	progress := repository.NewProgressRepository(db)
	audit := repository.NewAuditRepository(db)

	authSvc := service.NewAuthService(users, validate, "test-access-secret", "test-refresh-secret", 15*time.Minute, 24*time.Hour, log)
	tenantSvc := service.NewTenantService(tenants, validate, log)
	userSvc := service.NewUserService(users, tenants, validate, log)
	examSvc := service.NewExamService(exams, attempts, audit, validate, log)
	sheetSvc := service.NewSpreadsheetService(questions, exams, log)
	questionSvc := service.NewQuestionService(questions, exams, validate, noopUploader{}, log)
	attemptSvc := service.NewAttemptService(attempts, exams, questions, progress, users, log)
	seedSvc := service.NewSeedService(tenants, users, true, "seed-token", log)
	dashboardSvc := service.NewAdminDashboardService(tenants, users, exams, attempts, audit, nil, 0, log)
	backupSvc := service.NewBackupService(db, filepath.Join(root, "test.db"), filepath.Join(root, "uploads"), filepath.Join(root, "backups"), nil, log)

	cfg := config.Config{
		AppName:        "ExamDesk API",
		AppEnv:         "test",
		StorageBackend: config.StorageLocal,
		UploadFolder:   filepath.Join(root, "uploads"),
	}

	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:           handler.NewAuthHandler(authSvc, log),
		SettingsHandler:       handler.NewSettingsHandler(authSvc, log),
		TenantHandler:         handler.NewTenantHandler(tenantSvc, log),
		UserHandler:           handler.NewUserHandler(userSvc, log),
		AdminDashboardHandler: handler.NewAdminDashboardHandler(dashboardSvc, seedSvc, log),
		BackupHandler:         handler.NewBackupHandler(backupSvc, log),
		ExamHandler:           handler.NewExamHandler(examSvc, sheetSvc, log),
		QuestionHandler:       handler.NewQuestionHandler(questionSvc, log),
		AttemptHandler:        handler.NewAttemptHandler(attemptSvc, log),
		JWTMiddleware:         testIdentity,
	})

	return &testEnv{app: app, db: db}
}

type noopUploader struct{}

func (noopUploader) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	return "/static/uploads/" + name, nil
}

func (e *testEnv) seedTenant(t *testing.T, name, slug string) models.Tenant {
	t.Helper()
	tenant := models.Tenant{Name: name, Slug: slug}
	require.NoError(t, e.db.Create(&tenant).Error)
	return tenant
}

func (e *testEnv) seedUser(t *testing.T, username, password, role string, tenantID uint) models.User {
	t.Helper()
	hash, err := service.HashPassword(password)
	require.NoError(t, err)
	user := models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		TenantID:     tenantID,
		Timezone:     "UTC",
	}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

// request performs an HTTP call against the test app. A nil user leaves the
// request anonymous.
func (e *testEnv) request(t *testing.T, method, path string, body interface{}, as *models.User) (int, apiEnvelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set("X-Test-User", fmt.Sprintf("%d", as.ID))
		req.Header.Set("X-Test-Role", as.Role)
		req.Header.Set("X-Test-Tenant", fmt.Sprintf("%d", as.TenantID))
		req.Header.Set("X-Test-TZ", as.Timezone)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope apiEnvelope
	if len(raw) > 0 && resp.Header.Get("Content-Type") != "" &&
		resp.StatusCode != http.StatusTooManyRequests {
		_ = json.Unmarshal(raw, &envelope)
	}
	return resp.StatusCode, envelope
}

func decodeData(t *testing.T, envelope apiEnvelope, out interface{}) {
	t.Helper()
	require.NotNil(t, envelope.Data)
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}
