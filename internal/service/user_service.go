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
	"github.com/examdesk/examdesk-api/internal/timeutil"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInstructorInvalid indicates the assigned instructor is missing or
	// belongs to a different tenant.
	ErrInstructorInvalid = errors.New("instructor must be an instructor in the same tenant")
)

// UserService exposes admin user management use cases.
type UserService interface {
	List(ctx context.Context, filter repository.UserFilter) ([]dto.UserResponse, error)
	Get(ctx context.Context, id uint) (dto.UserResponse, error)
	Create(ctx context.Context, payload dto.UserCreateRequest) (dto.UserResponse, error)
	Update(ctx context.Context, id uint, payload dto.UserUpdateRequest) (dto.UserResponse, error)
}

type userService struct {
	users     repository.UserRepository
	tenants   repository.TenantRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService builds a new user service.
func NewUserService(users repository.UserRepository, tenants repository.TenantRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		tenants:   tenants,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) List(ctx context.Context, filter repository.UserFilter) ([]dto.UserResponse, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponseSlice(users), nil
}

func (s *userService) Get(ctx context.Context, id uint) (dto.UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) Create(ctx context.Context, payload dto.UserCreateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	username := strings.TrimSpace(payload.Username)
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return dto.UserResponse{}, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, err
	}

	if _, err := s.tenants.GetByID(ctx, payload.TenantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrTenantNotFound
		}
		return dto.UserResponse{}, err
	}

	// Unknown roles degrade to student rather than failing the request.
	role := strings.ToLower(strings.TrimSpace(payload.Role))
	if !models.ValidRole(role) {
		role = models.RoleStudent
	}

	tz := strings.TrimSpace(payload.Timezone)
	if tz == "" || !timeutil.Valid(tz) {
		tz = "UTC"
	}

	hash, err := HashPassword(payload.Password)
	if err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		FullName:     strings.TrimSpace(payload.FullName),
		TenantID:     payload.TenantID,
		Timezone:     tz,
	}

	if role == models.RoleStudent && payload.InstructorID != nil {
		if err := s.checkInstructor(ctx, *payload.InstructorID, payload.TenantID); err != nil {
			return dto.UserResponse{}, err
		}
		user.InstructorID = payload.InstructorID
	}

	if err := s.users.Create(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Str("role", user.Role).Uint("tenant_id", user.TenantID).Msg("user created")
	return dto.NewUserResponse(user), nil
}

func (s *userService) Update(ctx context.Context, id uint, payload dto.UserUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	if payload.FullName != nil {
		user.FullName = strings.TrimSpace(*payload.FullName)
	}

	if payload.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*payload.Role))
		if !models.ValidRole(role) {
			role = models.RoleStudent
		}
		user.Role = role
		if role != models.RoleStudent {
			user.InstructorID = nil
		}
	}

	if payload.TenantID != nil {
		if _, err := s.tenants.GetByID(ctx, *payload.TenantID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.UserResponse{}, ErrTenantNotFound
			}
			return dto.UserResponse{}, err
		}
		user.TenantID = *payload.TenantID
	}

	if payload.InstructorID != nil && user.Role == models.RoleStudent {
		if *payload.InstructorID == 0 {
			user.InstructorID = nil
		} else {
			if err := s.checkInstructor(ctx, *payload.InstructorID, user.TenantID); err != nil {
				return dto.UserResponse{}, err
			}
			user.InstructorID = payload.InstructorID
		}
	}

	if payload.Timezone != nil && timeutil.Valid(*payload.Timezone) {
		user.Timezone = *payload.Timezone
	}

	if payload.Password != nil && *payload.Password != "" {
		hash, err := HashPassword(*payload.Password)
		if err != nil {
			return dto.UserResponse{}, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Msg("user updated")
	return dto.NewUserResponse(user), nil
}

func (s *userService) checkInstructor(ctx context.Context, instructorID, tenantID uint) error {
	instructor, err := s.users.GetByID(ctx, instructorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInstructorInvalid
		}
		return err
	}
	if instructor.Role != models.RoleInstructor || instructor.TenantID != tenantID {
		return ErrInstructorInvalid
	}
	return nil
}
