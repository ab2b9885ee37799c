package models

import "time"

// Tenant is an isolated customer/organization boundary. Every domain row
// carries a tenant id and queries never cross tenants.
type Tenant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Slug      string    `gorm:"size:80;uniqueIndex;not null" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultTenantSlug identifies the tenant created on first boot.
const DefaultTenantSlug = "default"
