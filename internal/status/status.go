package status

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/session"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/router"
)

type Handler struct {
	sessions *session.Tracker
}

func NewHandler(sessions *session.Tracker) *Handler {
	return &Handler{sessions: sessions}
}

// GetStatus
// @Summary     Get session status
// @Description Current session state, readiness flag and the QR data URL of the active pairing cycle
// @Tags        Session
// @Produce     json
// @Router      /status [get]
func (h *Handler) GetStatus(c *fiber.Ctx) error {
	current := h.sessions.Current()

	var qr interface{}
	if current.QRDataURL != "" {
		qr = current.QRDataURL
	}

	return router.ResponseLegacy(c, fiber.Map{
		"status":  current.State,
		"isReady": current.IsReady,
		"qr":      qr,
	})
}

// GetQRImage
// @Summary     Get the pairing QR image
// @Description PNG of the current pairing code; 404 before the first pairing cycle
// @Tags        Session
// @Produce     png
// @Router      /qr.png [get]
func (h *Handler) GetQRImage(c *fiber.Ctx) error {
	path := h.sessions.QRImagePath()
	if _, err := os.Stat(path); err != nil {
		return router.ResponseNotFound(c, "QR code has not been generated yet")
	}
	return c.SendFile(path)
}
