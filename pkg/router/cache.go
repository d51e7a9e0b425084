package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
)

// HttpCacheInMemory caches GET responses. Session status and the QR image
// must always reflect the live pairing cycle, so those paths bypass it.
func HttpCacheInMemory(ttl int) fiber.Handler {
	if ttl <= 0 {
		ttl = 5
	}
	return cache.New(cache.Config{
		Next: func(c *fiber.Ctx) bool {
			if c.Method() != fiber.MethodGet {
				return true
			}
			return strings.HasSuffix(c.Path(), "/status") || strings.HasSuffix(c.Path(), "/qr.png")
		},
		Expiration: time.Duration(ttl) * time.Second,
	})
}
