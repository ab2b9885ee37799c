package service

import "github.com/examdesk/examdesk-api/internal/models"

// Actor identifies the authenticated user performing a service call.
// Handlers build it from the JWT claims stored on the request context.
type Actor struct {
	ID       uint
	Role     string
	TenantID uint
	Timezone string
}

// IsAdmin reports whether the actor holds the admin role. Admins bypass
// tenant and ownership checks everywhere.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}
