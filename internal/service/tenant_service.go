package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/examdesk/examdesk-api/internal/dto"
	"github.com/examdesk/examdesk-api/internal/models"
	"github.com/examdesk/examdesk-api/internal/repository"
)

var (
	// ErrTenantNotFound indicates the requested tenant does not exist.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrTenantSlugTaken indicates the slug is already in use.
	ErrTenantSlugTaken = errors.New("tenant slug already exists")
)

// TenantService exposes tenant management use cases.
type TenantService interface {
	List(ctx context.Context) ([]dto.TenantResponse, error)
	Get(ctx context.Context, id uint) (dto.TenantResponse, error)
	Create(ctx context.Context, payload dto.TenantCreateRequest) (dto.TenantResponse, error)
}

type tenantService struct {
	repo      repository.TenantRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewTenantService builds a new tenant service.
func NewTenantService(repo repository.TenantRepository, validate *validator.Validate, logger zerolog.Logger) TenantService {
	return &tenantService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "tenant_service").Logger(),
	}
}

func (s *tenantService) List(ctx context.Context) ([]dto.TenantResponse, error) {
	tenants, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewTenantResponseSlice(tenants), nil
}

func (s *tenantService) Get(ctx context.Context, id uint) (dto.TenantResponse, error) {
	tenant, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TenantResponse{}, ErrTenantNotFound
		}
		return dto.TenantResponse{}, err
	}
	return dto.NewTenantResponse(tenant), nil
}

func (s *tenantService) Create(ctx context.Context, payload dto.TenantCreateRequest) (dto.TenantResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TenantResponse{}, err
	}

	slug := strings.ToLower(strings.TrimSpace(payload.Slug))
	if _, err := s.repo.GetBySlug(ctx, slug); err == nil {
		return dto.TenantResponse{}, ErrTenantSlugTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.TenantResponse{}, err
	}

	tenant := models.Tenant{
		Name: strings.TrimSpace(payload.Name),
		Slug: slug,
	}
	if err := s.repo.Create(ctx, &tenant); err != nil {
		return dto.TenantResponse{}, err
	}

	s.logger.Info().Uint("tenant_id", tenant.ID).Str("slug", tenant.Slug).Msg("tenant created")
	return dto.NewTenantResponse(tenant), nil
}
