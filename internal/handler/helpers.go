package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/examdesk/examdesk-api/internal/service"
)

// actorFromCtx rebuilds the caller identity stored by the JWT middleware.
func actorFromCtx(c *fiber.Ctx) service.Actor {
	actor := service.Actor{}
	if id, ok := c.Locals("user_id").(uint); ok {
		actor.ID = id
	}
	if role, ok := c.Locals("user_role").(string); ok {
		actor.Role = role
	}
	if tenantID, ok := c.Locals("tenant_id").(uint); ok {
		actor.TenantID = tenantID
	}
	if tz, ok := c.Locals("user_tz").(string); ok {
		actor.Timezone = tz
	}
	return actor
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := c.Params(name)
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}
