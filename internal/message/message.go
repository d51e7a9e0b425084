package message

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/ledger"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/session"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/store"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/types"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/log"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/media"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/router"
	pkgWhatsApp "github.com/geniality/go-whatsapp-gateway-rest-api/pkg/whatsapp"
)

const sentMessagesLimit = 100

// Sender is the transport surface used by the dispatcher. Satisfied by
// pkg/whatsapp.Client.
type Sender interface {
	SendText(ctx context.Context, chatID string, message string) (string, error)
	SendImage(ctx context.Context, chatID string, imageBytes []byte, imageType string, imageCaption string) (string, error)
}

// Store is the message persistence surface used by the dispatcher.
type Store interface {
	SaveSentMessage(ctx context.Context, rec *store.MessageRecord) (bool, error)
	MessagesByPhone(ctx context.Context, phone string, limit int) ([]store.MessageRecord, error)
}

type Handler struct {
	sessions *session.Tracker
	sender   Sender
	store    Store
}

func NewHandler(sessions *session.Tracker, sender Sender, st Store) *Handler {
	return &Handler{sessions: sessions, sender: sender, store: st}
}

// Send
// @Summary     Send a text or image message
// @Description Send a message to an individual chat, optionally with an image from a URL or base64 payload
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Router      /send [post]
func (h *Handler) Send(c *fiber.Ctx) error {
	if !h.sessions.Current().IsReady {
		return router.ResponseServiceUnavailable(c, "WhatsApp client is not ready")
	}

	var req types.RequestSendMessage
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Failed parse body request")
	}

	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" || (req.Message == "" && req.ImageURL == "" && req.ImageBase64 == "") {
		return router.ResponseBadRequest(c, "phone and at least one of message, imageUrl or imageBase64 are required")
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	chatID := pkgWhatsApp.ComposeChatID(req.Phone)

	var attachment *media.Attachment
	var err error
	switch {
	case req.ImageURL != "":
		attachment, err = media.FetchURL(ctx, req.ImageURL)
		if err != nil {
			log.Print(c).WithError(err).Error("Failed to fetch imageUrl")
			return router.ResponseInternalError(c, err.Error())
		}
	case req.ImageBase64 != "":
		attachment, err = media.FromBase64(req.ImageBase64)
		if err != nil {
			return router.ResponseBadRequest(c, err.Error())
		}
	}

	var msgID string
	if attachment != nil {
		msgID, err = h.sender.SendImage(ctx, chatID, attachment.Bytes, attachment.MimeType, req.Message)
	} else {
		msgID, err = h.sender.SendText(ctx, chatID, req.Message)
	}
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to send message to " + chatID)
		return router.ResponseInternalError(c, err.Error())
	}

	if msgID == "" {
		// No resolvable id; the outbound-observed hook still records the
		// message when it shows up on the event stream.
		return router.ResponseLegacy(c, fiber.Map{
			"status": "enviado",
			"detail": "mensaje enviado sin id",
		})
	}

	rec := &store.MessageRecord{
		MessageID:   msgID,
		Phone:       req.Phone,
		ChatID:      chatID,
		Content:     req.Message,
		ImageURL:    req.ImageURL,
		ImageBase64: req.ImageBase64,
		Ack:         ledger.AckSent,
		AckText:     ledger.AckText(ledger.AckSent),
		Date:        time.Now(),
	}
	if _, err := h.store.SaveSentMessage(ctx, rec); err != nil {
		// The send already succeeded; the ledger hook is the safety net.
		log.Print(c).WithError(err).Error("Failed to persist sent message " + msgID)
	}

	return router.ResponseLegacy(c, fiber.Map{
		"status": "enviado",
		"id":     msgID,
	})
}

// ListSent
// @Summary     List sent messages for a phone
// @Description Return up to 100 outbound message records, newest first
// @Tags        Messages
// @Produce     json
// @Router      /sent-messages [get]
func (h *Handler) ListSent(c *fiber.Ctx) error {
	phone := strings.TrimSpace(c.Query("phone"))
	if phone == "" {
		return router.ResponseBadRequest(c, "phone query parameter is required")
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	records, err := h.store.MessagesByPhone(ctx, phone, sentMessagesLimit)
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to list sent messages")
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseLegacy(c, records)
}
