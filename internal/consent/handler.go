package consent

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/session"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/types"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/log"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/router"
	pkgWhatsApp "github.com/geniality/go-whatsapp-gateway-rest-api/pkg/whatsapp"
)

type Handler struct {
	sessions *session.Tracker
	sender   Sender
	store    Store
}

func NewHandler(sessions *session.Tracker, sender Sender, st Store) *Handler {
	return &Handler{sessions: sessions, sender: sender, store: st}
}

// SendConsent
// @Summary     Send a consent prompt
// @Description Send the opt-in prompt to a phone and mark its chat as pending consent
// @Tags        Consent
// @Accept      json
// @Produce     json
// @Router      /send-consent [post]
func (h *Handler) SendConsent(c *fiber.Ctx) error {
	if !h.sessions.Current().IsReady {
		return router.ResponseServiceUnavailable(c, "WhatsApp client is not ready")
	}

	var req types.RequestSendConsent
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Failed parse body request")
	}

	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" {
		return router.ResponseBadRequest(c, "phone is required")
	}

	prompt := strings.TrimSpace(req.Message)
	if prompt == "" {
		prompt = DefaultPrompt
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	chatID := pkgWhatsApp.ComposeChatID(req.Phone)

	// Record intent before attempting delivery so the pending flag survives
	// a failed send.
	if err := h.store.MarkConsentPending(ctx, chatID, prompt); err != nil {
		log.Print(c).WithError(err).Error("Failed to mark consent pending for " + chatID)
	}

	if _, err := h.sender.SendText(ctx, chatID, prompt); err != nil {
		log.Print(c).WithError(err).Error("Failed to send consent prompt to " + chatID)
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseLegacy(c, fiber.Map{
		"status": "solicitud de consentimiento enviada",
		"chatId": chatID,
	})
}
