package dto

import "github.com/examdesk/examdesk-api/internal/models"

// TenantCreateRequest describes the payload for creating a tenant.
type TenantCreateRequest struct {
	Name string `json:"name" validate:"required,min=2,max=120"`
	Slug string `json:"slug" validate:"required,min=2,max=80,lowercase"`
}

// TenantResponse is the serialized tenant representation.
type TenantResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// NewTenantResponse converts a model into a DTO.
func NewTenantResponse(model models.Tenant) TenantResponse {
	return TenantResponse{ID: model.ID, Name: model.Name, Slug: model.Slug}
}

// NewTenantResponseSlice converts a slice of models into DTOs.
func NewTenantResponseSlice(tenants []models.Tenant) []TenantResponse {
	responses := make([]TenantResponse, 0, len(tenants))
	for _, tenant := range tenants {
		responses = append(responses, NewTenantResponse(tenant))
	}
	return responses
}
