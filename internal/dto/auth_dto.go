package dto

import "github.com/examdesk/examdesk-api/internal/models"

// LoginRequest carries the credentials presented at login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenPairResponse is returned on successful authentication.
type TokenPairResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         UserResponse `json:"user"`
}

// ChangePasswordRequest carries a password rotation for the current user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// TimezoneUpdateRequest sets the current user's display timezone.
type TimezoneUpdateRequest struct {
	Timezone string `json:"timezone" validate:"required"`
}

// UserResponse is the serialized account representation.
type UserResponse struct {
	ID           uint   `json:"id"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	FullName     string `json:"full_name,omitempty"`
	TenantID     uint   `json:"tenant_id"`
	InstructorID *uint  `json:"instructor_id,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(model models.User) UserResponse {
	return UserResponse{
		ID:           model.ID,
		Username:     model.Username,
		Role:         model.Role,
		FullName:     model.FullName,
		TenantID:     model.TenantID,
		InstructorID: model.InstructorID,
		Timezone:     model.Timezone,
	}
}

// NewUserResponseSlice converts a slice of models into DTOs.
func NewUserResponseSlice(users []models.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, NewUserResponse(user))
	}
	return responses
}
