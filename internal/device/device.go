package device

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/log"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/router"
)

// Session is the lifecycle surface used by the logout handler. Satisfied by
// pkg/whatsapp.Client.
type Session interface {
	Logout(ctx context.Context) error
}

type Handler struct {
	session Session
}

func NewHandler(session Session) *Handler {
	return &Handler{session: session}
}

// Logout
// @Summary     Close the WhatsApp session
// @Description Revoke the session, delete stored credentials and remove the QR artifact
// @Tags        Session
// @Produce     json
// @Router      /logout [post]
func (h *Handler) Logout(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := h.session.Logout(ctx); err != nil {
		log.Print(c).WithError(err).Error("Failed to close session")
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseLegacy(c, fiber.Map{"status": "session closed"})
}
