// Package fiberware adapts slateauth to gofiber v2. The session slot rides
// in the fiber user context, so handlers reach it through c.UserContext().
package fiberware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/slatekit/slateauth"
	"github.com/slatekit/slateauth/permission"
)

// SlotResolver picks the session slot for a request. Returning nil leaves
// the request without a session.
type SlotResolver func(c *fiber.Ctx) slateauth.SessionSlot

// Attach stores the resolved slot in the user context.
func Attach(resolve SlotResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if resolve != nil {
			if slot := resolve(c); slot != nil {
				c.SetUserContext(slateauth.WithSession(c.UserContext(), slot))
			}
		}
		return c.Next()
	}
}

// RequireFlags answers 401 without a session and 403 when the session
// lacks any bit of required.
func RequireFlags(auth *slateauth.Auth, required ...permission.Flags) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if auth == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		switch auth.Authorize(c.UserContext(), required...) {
		case slateauth.GateAllowed:
			return c.Next()
		case slateauth.GateForbidden:
			return fiber.NewError(fiber.StatusForbidden, "forbidden")
		default:
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
	}
}

// Session returns the slot attached by [Attach].
func Session(c *fiber.Ctx) (slateauth.SessionSlot, bool) {
	return slateauth.SessionFromContext(c.UserContext())
}
