package service

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/examdesk/examdesk-api/internal/models"
	"github.com/examdesk/examdesk-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates seeding is switched off in configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedTokenInvalid indicates the seed token did not match.
	ErrSeedTokenInvalid = errors.New("invalid seed token")
)

// SeedService provisions the default tenant and starter accounts.
type SeedService interface {
	// EnsureDefaults creates the default tenant and accounts if missing.
	// Safe to run on every startup.
	EnsureDefaults(ctx context.Context) error
	// Seed is the token-guarded variant exposed over HTTP.
	Seed(ctx context.Context, token string) error
}

type seedService struct {
	tenants repository.TenantRepository
	users   repository.UserRepository
	enabled bool
	token   string
	logger  zerolog.Logger
}

// NewSeedService builds a new seed service.
func NewSeedService(tenants repository.TenantRepository, users repository.UserRepository, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		tenants: tenants,
		users:   users,
		enabled: enabled,
		token:   token,
		logger:  logger.With().Str("component", "seed_service").Logger(),
	}
}

func (s *seedService) Seed(ctx context.Context, token string) error {
	if !s.enabled {
		return ErrSeedDisabled
	}
	if s.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
		return ErrSeedTokenInvalid
	}
	return s.EnsureDefaults(ctx)
}

func (s *seedService) EnsureDefaults(ctx context.Context) error {
	tenant, err := s.tenants.GetBySlug(ctx, models.DefaultTenantSlug)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		tenant = models.Tenant{Name: "Default", Slug: models.DefaultTenantSlug}
		if err := s.tenants.Create(ctx, &tenant); err != nil {
			return err
		}
		s.logger.Info().Uint("tenant_id", tenant.ID).Msg("default tenant created")
	}

	admin, err := s.ensureUser(ctx, models.User{
		Username: "admin",
		Role:     models.RoleAdmin,
		FullName: "Administrator",
		TenantID: tenant.ID,
		Timezone: "UTC",
	}, "admin123")
	if err != nil {
		return err
	}

	instructor, err := s.ensureUser(ctx, models.User{
		Username: "instructor1",
		Role:     models.RoleInstructor,
		FullName: "Default Instructor",
		TenantID: tenant.ID,
		Timezone: "UTC",
	}, "instructor123")
	if err != nil {
		return err
	}

	student := models.User{
		Username:     "student1",
		Role:         models.RoleStudent,
		FullName:     "Default Student",
		TenantID:     tenant.ID,
		InstructorID: &instructor.ID,
		Timezone:     "UTC",
	}
	if _, err := s.ensureUser(ctx, student, "student123"); err != nil {
		return err
	}

	s.logger.Warn().Uint("admin_id", admin.ID).
		Msg("default accounts present, change the passwords before going live")
	return nil
}

func (s *seedService) ensureUser(ctx context.Context, user models.User, password string) (models.User, error) {
	existing, err := s.users.GetByUsername(ctx, user.Username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	user.PasswordHash = hash
	if err := s.users.Create(ctx, &user); err != nil {
		return models.User{}, err
	}
	s.logger.Info().Str("username", user.Username).Str("role", user.Role).Msg("seeded account")
	return user, nil
}
