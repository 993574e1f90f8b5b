package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/greenfoldhq/greenfold/internal/pkg/session"
	"github.com/greenfoldhq/greenfold/internal/pkg/usercontext"
)

// UserContextMiddleware loads the session once per request and stores a
// UserContext in Locals so handlers never touch the session store directly.
func UserContextMiddleware(c *fiber.Ctx) error {
	ctx := usercontext.UserContext{}

	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		if v := sess.Get(usercontext.KeyUserID); v != nil {
			if id, ok := v.(uint); ok && id > 0 {
				ctx.UserID = id
				ctx.IsLoggedIn = true
			}
		}
		if v := sess.Get(usercontext.KeyUserName); v != nil {
			if name, ok := v.(string); ok {
				ctx.Username = name
			}
		}
		if v := sess.Get(usercontext.KeyIsAdmin); v != nil {
			if admin, ok := v.(bool); ok {
				ctx.IsAdmin = admin
			}
		}
	}

	c.Locals(usercontext.KeyUserContext, ctx)
	return c.Next()
}
