package dto

// UserCreateRequest describes the payload for creating an account.
type UserCreateRequest struct {
	Username     string `json:"username" validate:"required,min=2,max=80"`
	Password     string `json:"password" validate:"required,min=6"`
	Role         string `json:"role"`
	FullName     string `json:"full_name" validate:"max=120"`
	TenantID     uint   `json:"tenant_id" validate:"required"`
	InstructorID *uint  `json:"instructor_id"`
	Timezone     string `json:"timezone"`
}

// UserUpdateRequest describes a partial account update. A non-empty password
// must match its confirmation.
type UserUpdateRequest struct {
	Username        *string `json:"username" validate:"omitempty,min=2,max=80"`
	Role            *string `json:"role"`
	FullName        *string `json:"full_name" validate:"omitempty,max=120"`
	TenantID        *uint   `json:"tenant_id"`
	InstructorID    *uint   `json:"instructor_id"`
	Timezone        *string `json:"timezone"`
	Password        *string `json:"password" validate:"omitempty,min=6"`
	PasswordConfirm *string `json:"password_confirm"`
}
